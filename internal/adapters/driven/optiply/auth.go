package optiply

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/logger"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenProvider = (*TokenStore)(nil)

// expirySkew is how long before the recorded expiry a token is treated as
// stale, so a request never departs with a token about to lapse.
const expirySkew = 2 * time.Minute

// Credentials holds the password-grant credentials for the auth endpoint.
type Credentials struct {
	// Username and Password are the resource-owner credentials.
	Username string
	Password string

	// ClientID and ClientSecret authenticate the client itself; they travel
	// as HTTP basic auth on the token request.
	ClientID     string
	ClientSecret string
}

// TokenStore owns the process-wide token. It is the single writer: login
// and refresh replace the token atomically under the mutex, and readers
// always fetch the current value through Token rather than caching it.
type TokenStore struct {
	conf       *oauth2.Config
	creds      Credentials
	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenStore creates a token store against tokenURL
// (e.g. "https://dashboard.optiply.nl/api/auth/oauth/token").
// client may be nil; tests inject one pointing at a stub server.
func NewTokenStore(tokenURL string, creds Credentials, client *http.Client) *TokenStore {
	return &TokenStore{
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		creds:      creds,
		httpClient: client,
	}
}

// Token returns a valid access token, performing a login exchange if none
// is cached or the cached one is within the expiry skew.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid() {
		return s.token.AccessToken, nil
	}
	logger.Info("no valid access token, performing login")
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.token.AccessToken, nil
}

// Refresh exchanges the refresh token for a new token. stale is the token
// the caller saw rejected: if the stored token already differs, another
// stream refreshed first and the current token is returned as is. A failed
// refresh exchange falls back to a full login.
func (s *TokenStore) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.token.AccessToken != "" && s.token.AccessToken != stale {
		logger.Debug("token already replaced by a concurrent refresh")
		return s.token.AccessToken, nil
	}

	if s.token != nil && s.token.RefreshToken != "" {
		logger.Info("refreshing access token")
		src := s.conf.TokenSource(s.exchangeContext(ctx), &oauth2.Token{
			RefreshToken: s.token.RefreshToken,
		})
		tok, err := src.Token()
		if err == nil {
			s.token = tok
			return tok.AccessToken, nil
		}
		logger.Warn("refresh exchange rejected, falling back to login: %v", err)
	}

	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.token.AccessToken, nil
}

// login performs the password-grant exchange. Caller holds the mutex.
func (s *TokenStore) login(ctx context.Context) error {
	tok, err := s.conf.PasswordCredentialsToken(s.exchangeContext(ctx), s.creds.Username, s.creds.Password)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	s.token = tok
	logger.Info("obtained access token, expires at %s", tok.Expiry.Format(time.RFC3339))
	return nil
}

// exchangeContext routes oauth2 exchanges through the configured client.
func (s *TokenStore) exchangeContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// valid reports whether the cached token is usable. Caller holds the mutex.
func (s *TokenStore) valid() bool {
	if s.token == nil || s.token.AccessToken == "" {
		return false
	}
	if s.token.Expiry.IsZero() {
		return true
	}
	return time.Until(s.token.Expiry) > expirySkew
}
