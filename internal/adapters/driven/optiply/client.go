// Package optiply is the driven adapter for the Optiply inventory API:
// token management, retry classification and the HTTP dispatcher.
package optiply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.Dispatcher = (*Client)(nil)

// contentType is the JSON:API media type the Optiply API speaks.
const contentType = "application/vnd.api+json"

// ClientConfig configures the dispatcher.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.acceptance.optiply.com/v1".
	BaseURL string

	// AccountID and CouplingID, when set, travel as query parameters on
	// every request.
	AccountID  string
	CouplingID string

	// Policy governs retry classification and backoff.
	Policy RetryPolicy

	// RateLimit is the proactive request pacing in requests per second
	// (default 10), with RateBurst as the bucket size (default 5).
	RateLimit float64
	RateBurst int

	// HTTPClient carries the requests. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// Client sends transformed payloads to the Optiply API. One payload per
// record; authentication, retry and backoff are handled here so callers see
// either a result or a terminal error for that record.
type Client struct {
	cfg     ClientConfig
	tokens  driven.TokenProvider
	client  *http.Client
	limiter *rate.Limiter

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a dispatcher using tokens for bearer credentials.
func NewClient(cfg ClientConfig, tokens driven.TokenProvider) *Client {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10.0
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		sleep:   sleepContext,
	}
}

// Send delivers one payload. 401 responses trigger a single token refresh
// and resend that does not count against the retry ceiling; retryable
// failures back off exponentially until the ceiling, then surface as a
// terminal error for the record.
func (c *Client) Send(ctx context.Context, def *domain.StreamDefinition, op domain.OperationKind, localID string, payload map[string]any) (*driven.SendResult, error) {
	method, reqURL, err := c.route(def, op, localID)
	if err != nil {
		return nil, err
	}

	var body []byte
	if op != domain.OperationDelete {
		envelope := map[string]any{
			"data": map[string]any{
				"type":       def.Endpoint,
				"attributes": payload,
			},
		}
		if body, err = json.Marshal(envelope); err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
	}

	refreshed := false
	var lastErr error

	for attempt := 0; ; {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		status, respBody, doErr := c.do(ctx, method, reqURL, body, token)
		if doErr != nil {
			// Network-level failure: same policy as a 5xx.
			lastErr = doErr
			if c.cfg.Policy.Exhausted(attempt) {
				return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrRetryExhausted, attempt+1, lastErr)
			}
			if err := c.backoff(ctx, def.Name, attempt); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		switch Classify(status) {
		case ClassOK:
			return &driven.SendResult{
				ExternalID: externalID(respBody),
				StatusCode: status,
			}, nil

		case ClassAuthExpired:
			if refreshed {
				return nil, fmt.Errorf("%w: still unauthorized after token refresh", domain.ErrAuthExpired)
			}
			refreshed = true
			logger.Info("received 401, refreshing token and resending")
			if _, err := c.tokens.Refresh(ctx, token); err != nil {
				return nil, err
			}
			// Resend immediately; does not consume a retry attempt.
			continue

		case ClassNotFound:
			return nil, newAPIError(status, respBody, reqURL)

		case ClassFatal:
			return nil, newAPIError(status, respBody, reqURL)

		default: // ClassRetryable
			lastErr = newAPIError(status, respBody, reqURL)
			if c.cfg.Policy.Exhausted(attempt) {
				return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrRetryExhausted, attempt+1, lastErr)
			}
			if err := c.backoff(ctx, def.Name, attempt); err != nil {
				return nil, err
			}
			attempt++
		}
	}
}

// route picks the verb and URL for an operation.
func (c *Client) route(def *domain.StreamDefinition, op domain.OperationKind, localID string) (method, reqURL string, err error) {
	path := def.Endpoint
	switch op {
	case domain.OperationCreate:
		method = http.MethodPost
	case domain.OperationUpdate:
		method = http.MethodPatch
	case domain.OperationDelete:
		method = http.MethodDelete
	default:
		return "", "", fmt.Errorf("unsupported operation %v", op)
	}
	if op != domain.OperationCreate {
		if localID == "" {
			return "", "", &domain.ValidationError{
				Stream: def.Name,
				Field:  "id",
				Reason: fmt.Sprintf("%s requires an id", op),
			}
		}
		path += "/" + url.PathEscape(localID)
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing base URL: %w", err)
	}
	u.Path = joinPath(u.Path, path)

	q := u.Query()
	if c.cfg.AccountID != "" {
		q.Set("accountId", c.cfg.AccountID)
	}
	if c.cfg.CouplingID != "" {
		q.Set("couplingId", c.cfg.CouplingID)
	}
	u.RawQuery = q.Encode()

	return method, u.String(), nil
}

// do performs one HTTP exchange and returns status and body.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	logger.Debug("%s %s", method, reqURL)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// backoff sleeps for the policy delay before the next attempt.
func (c *Client) backoff(ctx context.Context, stream string, attempt int) error {
	delay := c.cfg.Policy.NextDelay(attempt)
	logger.Warn("%s: retryable failure, backing off %s (attempt %d/%d)",
		stream, delay, attempt+1, c.cfg.Policy.MaxAttempts)
	return c.sleep(ctx, delay)
}

// externalID extracts the remote-assigned identifier from a JSON:API
// response body. Empty when the body carries none.
func externalID(body []byte) string {
	var envelope struct {
		Data struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	switch id := envelope.Data.ID.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}

// joinPath joins URL path segments without doubling slashes.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return "/" + p
	}
	for len(base) > 1 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + p
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
