package optiply

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// stubTokens hands out tokens from a fixed list, advancing on refresh.
type stubTokens struct {
	mu           sync.Mutex
	tokens       []string
	idx          int
	refreshCalls int
	lastStale    string
}

func (s *stubTokens) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[s.idx], nil
}

func (s *stubTokens) Refresh(_ context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	s.lastStale = stale
	if s.idx < len(s.tokens)-1 {
		s.idx++
	}
	return s.tokens[s.idx], nil
}

func testClient(t *testing.T, srv *httptest.Server, policy RetryPolicy, tokens *stubTokens) (*Client, *[]time.Duration) {
	t.Helper()
	if tokens == nil {
		tokens = &stubTokens{tokens: []string{"token-1"}}
	}
	c := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		AccountID:  "11",
		CouplingID: "22",
		Policy:     policy,
		RateLimit:  10000,
		RateBurst:  100,
		HTTPClient: srv.Client(),
	}, tokens)

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}
}

func productsDef() *domain.StreamDefinition {
	return &domain.StreamDefinition{Name: "products", Endpoint: "products"}
}

func TestSendCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "11", r.URL.Query().Get("accountId"))
		assert.Equal(t, "22", r.URL.Query().Get("couplingId"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, contentType, r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var envelope map[string]map[string]any
		require.NoError(t, json.Unmarshal(body, &envelope))
		assert.Equal(t, "products", envelope["data"]["type"])
		attrs := envelope["data"]["attributes"].(map[string]any)
		assert.Equal(t, "Widget", attrs["name"])

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 42, "type": "products"},
		})
	}))
	t.Cleanup(srv.Close)

	client, _ := testClient(t, srv, fastPolicy(), nil)
	res, err := client.Send(context.Background(), productsDef(), domain.OperationCreate, "",
		map[string]any{"name": "Widget", "stockLevel": int64(10)})
	require.NoError(t, err)
	assert.Equal(t, "42", res.ExternalID)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestSendUpdateAndDeleteRouting(t *testing.T) {
	var methods []string
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodDelete {
			body, _ := io.ReadAll(r.Body)
			assert.Empty(t, body, "deletes carry no body")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"7"}}`))
	}))
	t.Cleanup(srv.Close)

	client, _ := testClient(t, srv, fastPolicy(), nil)
	ctx := context.Background()

	_, err := client.Send(ctx, productsDef(), domain.OperationUpdate, "7", map[string]any{"price": 9.99})
	require.NoError(t, err)
	_, err = client.Send(ctx, productsDef(), domain.OperationDelete, "7", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
	assert.Equal(t, []string{"/products/7", "/products/7"}, paths)
}

func TestSendUpdateRequiresID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made")
	}))
	t.Cleanup(srv.Close)

	client, _ := testClient(t, srv, fastPolicy(), nil)
	_, err := client.Send(context.Background(), productsDef(), domain.OperationUpdate, "", map[string]any{"price": 1.0})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSendRefreshesOnceOn401(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"7"}}`))
	}))
	t.Cleanup(srv.Close)

	tokens := &stubTokens{tokens: []string{"token-1", "token-2"}}
	client, delays := testClient(t, srv, fastPolicy(), tokens)

	res, err := client.Send(context.Background(), productsDef(), domain.OperationUpdate, "7", map[string]any{"price": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "7", res.ExternalID)

	assert.Equal(t, 2, requests, "one 401 plus one resend")
	assert.Equal(t, 1, tokens.refreshCalls)
	assert.Equal(t, "token-1", tokens.lastStale)
	assert.Empty(t, *delays, "the refresh resend happens without backoff")
}

func TestSendSecond401IsFatal(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tokens := &stubTokens{tokens: []string{"token-1", "token-2"}}
	client, _ := testClient(t, srv, fastPolicy(), tokens)

	_, err := client.Send(context.Background(), productsDef(), domain.OperationCreate, "", map[string]any{"name": "Widget"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, tokens.refreshCalls)
}

func TestSendFatal4xx(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"detail":"name is required"}]}`))
	}))
	t.Cleanup(srv.Close)

	client, _ := testClient(t, srv, fastPolicy(), nil)
	_, err := client.Send(context.Background(), productsDef(), domain.OperationCreate, "", map[string]any{})
	require.Error(t, err)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "name is required")
	assert.Equal(t, 1, requests, "4xx is not retried")
}

func TestSendNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client, _ := testClient(t, srv, fastPolicy(), nil)
	_, err := client.Send(context.Background(), productsDef(), domain.OperationUpdate, "999", map[string]any{"price": 1.0})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestSendRetriesUntilCeiling(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, delays := testClient(t, srv, fastPolicy(), nil)
	_, err := client.Send(context.Background(), productsDef(), domain.OperationCreate, "", map[string]any{"name": "Widget"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)

	assert.Equal(t, 3, requests)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *delays,
		"backoff doubles between attempts")
}

func TestSendRecoversAfterRetry(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":42}}`))
	}))
	t.Cleanup(srv.Close)

	client, delays := testClient(t, srv, fastPolicy(), nil)
	res, err := client.Send(context.Background(), productsDef(), domain.OperationCreate, "", map[string]any{"name": "Widget"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.ExternalID)
	assert.Equal(t, 3, requests)
	assert.Len(t, *delays, 2)
}

func TestExternalID(t *testing.T) {
	assert.Equal(t, "42", externalID([]byte(`{"data":{"id":42}}`)))
	assert.Equal(t, "abc", externalID([]byte(`{"data":{"id":"abc"}}`)))
	assert.Equal(t, "", externalID([]byte(`{}`)))
	assert.Equal(t, "", externalID([]byte(`not json`)))
	assert.Equal(t, "", externalID(nil))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/products", joinPath("", "products"))
	assert.Equal(t, "/products", joinPath("/", "products"))
	assert.Equal(t, "/v1/products", joinPath("/v1", "products"))
	assert.Equal(t, "/v1/products", joinPath("/v1/", "products"))
}
