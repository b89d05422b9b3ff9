// Package gateway wraps outbound backend calls with the current bearer
// token and owns the single retry-on-401 policy. Every data-access
// component goes through it.
package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/travelo/travelo-cli/internal/backend"
)

// TokenSource is the narrow slice of the session manager the gateway
// needs: the current token, the refresh transition, and the forced logout
// when recovery is exhausted.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) error
	ForceLogout()
}

// refreshFlight is one in-flight refresh shared by all 401 callers
type refreshFlight struct {
	done chan struct{}
	err  error
}

// Gateway executes authenticated requests with a single-retry 401 policy
type Gateway struct {
	api     *backend.Client
	tokens  TokenSource
	limiter *rate.Limiter

	mu     sync.Mutex
	flight *refreshFlight
}

// New creates a gateway. requestsPerSecond <= 0 disables rate limiting.
func New(api *backend.Client, tokens TokenSource, requestsPerSecond float64) *Gateway {
	limit := rate.Inf
	burst := 0
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond) + 1
	}
	return &Gateway{
		api:     api,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Do executes one request with the current bearer token attached, or with
// no Authorization header at all when the session is anonymous. A 401 on an
// authenticated request triggers the de-duplicated refresh flow and exactly
// one retry; a second 401 after the retry terminates the session. Failures
// for any other reason are surfaced as-is, never retried.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &backend.Error{Kind: backend.KindNetwork, Err: err}
	}

	requestID := uuid.NewString()
	headers := map[string]string{"X-Request-ID": requestID}

	token := g.tokens.AccessToken()
	err := g.api.DoWithHeaders(ctx, method, path, token, headers, body, out)
	if err == nil {
		return nil
	}
	if !backend.IsKind(err, backend.KindUnauthenticated) {
		return err
	}
	if token == "" {
		// Anonymous calls have nothing to refresh; the caller simply
		// needed to log in.
		return err
	}

	log.Debug().Str("method", method).Str("path", path).Str("request_id", requestID).
		Msg("request got 401, attempting token refresh")

	if rerr := g.awaitRefresh(ctx); rerr != nil {
		// The refresh transition already forced the session to Anonymous.
		return rerr
	}

	retryErr := g.api.DoWithHeaders(ctx, method, path, g.tokens.AccessToken(), headers, body, out)
	if backend.IsKind(retryErr, backend.KindUnauthenticated) {
		// Recovered once already; a second 401 is session-terminating.
		g.tokens.ForceLogout()
		return &backend.Error{
			Kind:    backend.KindUnauthenticated,
			Message: "Your session has expired. Please log in again.",
			Err:     retryErr,
		}
	}
	return retryErr
}

// awaitRefresh collapses concurrent 401s into at most one in-flight
// refresh. The first caller runs it; everyone else waits on the same
// outcome.
func (g *Gateway) awaitRefresh(ctx context.Context) error {
	g.mu.Lock()
	if f := g.flight; f != nil {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return &backend.Error{Kind: backend.KindNetwork, Err: ctx.Err()}
		}
	}

	f := &refreshFlight{done: make(chan struct{})}
	g.flight = f
	g.mu.Unlock()

	f.err = g.tokens.Refresh(ctx)
	close(f.done)

	g.mu.Lock()
	g.flight = nil
	g.mu.Unlock()
	return f.err
}
