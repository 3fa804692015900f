package authentication

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	SchemeBasic  = "Basic"
	SchemeBearer = "Bearer"
)

// BasicHeader encodes username and password as an Authorization header value.
func BasicHeader(username, password string) string {
	return SchemeBasic + " " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// BearerHeader formats a bearer token as an Authorization header value.
func BearerHeader(token string) string {
	return SchemeBearer + " " + token
}

type IBasicAuthService interface {
	Validate(username, password string) bool
	DecodeFromHeader(auth string) (string, string)
	Enabled() bool
}

type BasicAuthTConfig struct {
	Username string

	Password string
}

type basicAuth struct {
	username string
	password string
}

func NewBasicAuthService(config *BasicAuthTConfig) IBasicAuthService {
	if config == nil {
		return &basicAuth{}
	}
	return &basicAuth{
		username: config.Username,
		password: config.Password,
	}
}

// Enabled reports whether credentials were configured at all.
func (b *basicAuth) Enabled() bool {
	return b.username != ""
}

func (b *basicAuth) Validate(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(b.username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(b.password), []byte(password)) == 1
	return b.Enabled() && userOK && passOK
}

func (b *basicAuth) DecodeFromHeader(auth string) (string, string) {
	return DecodeBasic(auth)
}

// DecodeBasic splits a "Basic <base64>" header value into username and password.
// Empty strings are returned for anything malformed.
func DecodeBasic(auth string) (string, string) {
	encoded := strings.TrimPrefix(auth, SchemeBasic+" ")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ""
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}

	return parts[0], parts[1]
}
