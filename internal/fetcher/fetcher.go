package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Alwanly/resource-watcher/internal/config"
	authentication "github.com/Alwanly/resource-watcher/pkg/auth"
	"github.com/Alwanly/resource-watcher/pkg/logger"
)

// Outcome classifies a single fetch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAuthRequired
	OutcomeHTTPFailure
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthRequired:
		return "auth_required"
	case OutcomeHTTPFailure:
		return "http_failure"
	case OutcomeTransportError:
		return "transport_error"
	}
	return "unknown"
}

// Credentials are read from the loop's authentication state on every tick.
type Credentials struct {
	// Token is sent as a bearer token when non-empty.
	Token string
	// Basic is used when there is no token.
	Basic *config.BasicAuth
}

// Result is the classified outcome of one fetch. Err is set only for
// OutcomeTransportError.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       string
	Err        error
}

// Fetcher issues the GET against the watched resource.
type Fetcher struct {
	httpClient *http.Client
	uri        string
	logger     *logger.CanonicalLogger
}

// NewFetcher creates a fetcher for cfg.URI.
func NewFetcher(cfg *config.WatchConfig, log *logger.CanonicalLogger) *Fetcher {
	return NewFetcherWithClient(cfg.URI, &http.Client{Timeout: cfg.RequestTimeout()}, log)
}

// NewFetcherWithClient lets callers supply their own transport.
func NewFetcherWithClient(uri string, client *http.Client, log *logger.CanonicalLogger) *Fetcher {
	return &Fetcher{
		httpClient: client,
		uri:        uri,
		logger:     log,
	}
}

// Fetch performs one request. It never returns an error: failures are
// folded into the Result so a bad tick cannot stop the loop.
func (f *Fetcher) Fetch(ctx context.Context, creds Credentials) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.uri, nil)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	switch {
	case creds.Token != "":
		req.Header.Set("Authorization", authentication.BearerHeader(creds.Token))
	case creds.Basic != nil:
		req.Header.Set("Authorization", authentication.BasicHeader(creds.Basic.Username, creds.Basic.Password))
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	f.logger.Debug("fetched resource",
		logger.Int(logger.FieldStatus, resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{Outcome: OutcomeAuthRequired, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{Outcome: OutcomeHTTPFailure, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode, Body: string(body)}
}
