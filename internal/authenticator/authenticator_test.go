package authenticator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alwanly/resource-watcher/internal/config"
	authentication "github.com/Alwanly/resource-watcher/pkg/auth"
	"github.com/Alwanly/resource-watcher/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func login(url string) config.LoginDescriptor {
	return config.LoginDescriptor{URL: url, Username: "alice", Password: "secret"}
}

func TestResolveToken_RetriesTransportFailures(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("connection refused")
		}
		return jsonResponse(http.StatusOK, `{"access_token":"tok-123"}`), nil
	})}

	a := NewAuthenticator(client, time.Millisecond, logger.NewNop())
	token, ok, err := a.ResolveToken(context.Background(), login("http://login.test/token"))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveToken_HeaderPhase(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, authentication.BasicHeader("alice", "secret"), r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token":"from-header"}`))
	}))
	defer ts.Close()

	token, ok, err := NewAuthenticator(ts.Client(), time.Millisecond, logger.NewNop()).
		ResolveToken(context.Background(), login(ts.URL))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-header", token)
}

func TestResolveToken_FallsBackToBody(t *testing.T) {
	var phases []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			phases = append(phases, "header")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		phases = append(phases, "body")
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "secret", req.Password)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"data":{"token":"from-body"}}`))
	}))
	defer ts.Close()

	desc := login(ts.URL)
	desc.TokenField = "data.token"
	token, ok, err := NewAuthenticator(ts.Client(), time.Millisecond, logger.NewNop()).
		ResolveToken(context.Background(), desc)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-body", token)
	assert.Equal(t, []string{"header", "body"}, phases)
}

func TestResolveToken_NoToken(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing field", http.StatusOK, `{"other":"x"}`},
		{"malformed body", http.StatusOK, `not json`},
		{"empty token", http.StatusOK, `{"access_token":""}`},
		{"non string token", http.StatusOK, `{"access_token":42}`},
		{"rejected", http.StatusForbidden, `{"access_token":"ignored"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			token, ok, err := NewAuthenticator(ts.Client(), time.Millisecond, logger.NewNop()).
				ResolveToken(context.Background(), login(ts.URL))

			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, token)
			assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "both phases should run once")
		})
	}
}

func TestResolveToken_CancelledDuringRetry(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("unreachable")
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := NewAuthenticator(client, time.Hour, logger.NewNop()).ResolveToken(ctx, login("http://login.test"))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ResolveToken did not return after cancel")
	}
}

func TestResolveToken_MalformedURLNotRetried(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusOK, `{"access_token":"tok"}`), nil
	})}

	_, ok, err := NewAuthenticator(client, time.Millisecond, logger.NewNop()).
		ResolveToken(context.Background(), login("http://login host/token"))

	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to create request")
	assert.Zero(t, atomic.LoadInt32(&calls))
}
