package authenticator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Alwanly/resource-watcher/internal/config"
	authentication "github.com/Alwanly/resource-watcher/pkg/auth"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/Alwanly/resource-watcher/pkg/retry"
	"github.com/tidwall/gjson"
)

const (
	phaseHeader = "basic_header"
	phaseBody   = "json_body"
)

// Authenticator exchanges login credentials for a bearer token.
// It is not safe for concurrent resolutions; the caller serializes them.
type Authenticator struct {
	httpClient *http.Client
	retryDelay time.Duration
	logger     *logger.CanonicalLogger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewAuthenticator creates an authenticator. retryDelay is the fixed wait
// between attempts that failed before any HTTP response arrived.
func NewAuthenticator(client *http.Client, retryDelay time.Duration, log *logger.CanonicalLogger) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authenticator{
		httpClient: client,
		retryDelay: retryDelay,
		logger:     log,
	}
}

// ResolveToken tries header credentials first and falls back to a JSON body.
// ok is false when neither phase produced a token. err is only returned
// when ctx is cancelled while a phase is still retrying.
func (a *Authenticator) ResolveToken(ctx context.Context, login config.LoginDescriptor) (string, bool, error) {
	field := login.TokenFieldOrDefault()

	token, err := a.phase(ctx, login, phaseHeader, field)
	if err != nil {
		return "", false, err
	}
	if token != "" {
		return token, true, nil
	}

	a.logger.Debug("header login yielded no token, retrying with body",
		logger.String(logger.FieldPhase, phaseBody),
	)

	token, err = a.phase(ctx, login, phaseBody, field)
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

// phase retries one login shape until any HTTP response comes back.
func (a *Authenticator) phase(ctx context.Context, login config.LoginDescriptor, phase, field string) (string, error) {
	var token string
	attempt := 0

	err := retry.Do(ctx, a.retryDelay, func(ctx context.Context) error {
		attempt++
		req, err := newLoginRequest(ctx, login, phase)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			a.logger.Debug("login request failed",
				logger.String(logger.FieldPhase, phase),
				logger.Int(logger.FieldAttempt, attempt),
				logger.Err(err),
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			a.logger.Debug("login rejected",
				logger.String(logger.FieldPhase, phase),
				logger.Int(logger.FieldStatus, resp.StatusCode),
			)
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			a.logger.Debug("failed to read login response", logger.String(logger.FieldPhase, phase), logger.Err(err))
			return nil
		}
		token = extractToken(body, field)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("login %s: %w", phase, err)
	}
	return token, nil
}

func newLoginRequest(ctx context.Context, login config.LoginDescriptor, phase string) (*http.Request, error) {
	if phase == phaseHeader {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, login.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", authentication.BasicHeader(login.Username, login.Password))
		return req, nil
	}

	payload, err := json.Marshal(loginRequest{Username: login.Username, Password: login.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, login.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// extractToken reads field from a JSON body. Anything but a non-empty
// string counts as no token.
func extractToken(body []byte, field string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	v := gjson.GetBytes(body, field)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}
