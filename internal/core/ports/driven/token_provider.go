package driven

import "context"

// TokenProvider provides access tokens for authenticated API calls.
// There is exactly one live token per process; implementations are its single
// writer. Callers must fetch the current value for every request rather than
// caching it, because a 401 mid-run replaces the token in place.
type TokenProvider interface {
	// Token returns a valid access token, performing a login exchange if no
	// token is cached or the cached one is near expiry.
	Token(ctx context.Context) (string, error)

	// Refresh exchanges the refresh token for a new access token, falling
	// back to a full login if the exchange is rejected. stale is the token
	// the caller saw rejected: if the current token already differs, Refresh
	// returns it without performing another exchange, so concurrent streams
	// reacting to the same expiry trigger only one refresh.
	Refresh(ctx context.Context, stale string) (string, error)
}
