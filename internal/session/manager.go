// Package session owns the client's authentication lifecycle: the single
// authoritative session state, the login/logout/refresh transitions, and
// the subscriber notifications every other component observes it through.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/travelo/travelo-cli/internal/backend"
	"github.com/travelo/travelo-cli/internal/notify"
	"github.com/travelo/travelo-cli/internal/tokenstore"
	"github.com/travelo/travelo-cli/pkg/models"
)

// State is the session lifecycle state
type State int

const (
	// Anonymous means no user is signed in and no tokens are held
	Anonymous State = iota
	// Authenticating means a login is in flight
	Authenticating
	// Authenticated means tokens and a resolved user identity are held
	Authenticated
	// RefreshingToken means a token refresh is in flight
	RefreshingToken
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case RefreshingToken:
		return "refreshing"
	}
	return "unknown"
}

// Surface is where a freshly logged-in user should land
type Surface int

const (
	// SurfaceDefault is the regular site surface
	SurfaceDefault Surface = iota
	// SurfaceAdmin is the admin dashboard, for users with the admin role
	SurfaceAdmin
)

// Snapshot is an immutable view of the session published to subscribers
type Snapshot struct {
	State State
	User  *models.User
}

// LoggedIn reports whether a user identity is resolved
func (s Snapshot) LoggedIn() bool {
	return s.User != nil
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	User    *models.User
	Surface Surface
}

const genericLoginFailure = "Login failed."

// Manager is the session state machine. It is the sole writer of session
// state and of the token store; everything else reads through Current or
// Subscribe. All mutation happens under mu; network round-trips do not.
type Manager struct {
	api      *backend.Client
	store    tokenstore.Store
	notifier notify.Notifier

	mu           sync.Mutex
	state        State
	user         *models.User
	accessToken  string
	refreshToken string

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewManager creates a session manager and rehydrates any persisted
// session. A stored token pair plus user seeds Authenticated optimistically
// without a server round-trip; a token that expired while the client was
// closed is discovered on the first authenticated call.
func NewManager(api *backend.Client, store tokenstore.Store, notifier notify.Notifier) *Manager {
	m := &Manager{
		api:      api,
		store:    store,
		notifier: notifier,
		state:    Anonymous,
		subs:     make(map[int]chan Snapshot),
	}

	state, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load persisted session")
		return m
	}
	if state.AccessToken != "" && state.User != nil {
		m.state = Authenticated
		m.user = state.User
		m.accessToken = state.AccessToken
		m.refreshToken = state.RefreshToken
		log.Debug().Str("username", state.User.Username).Msg("session rehydrated")
	}
	return m
}

// Current returns a snapshot of the session
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, User: m.user}
}

// IsLoggedIn reports whether a user identity is resolved
func (m *Manager) IsLoggedIn() bool {
	return m.Current().LoggedIn()
}

// CurrentUser returns the signed-in user, nil when anonymous
func (m *Manager) CurrentUser() *models.User {
	return m.Current().User
}

// AccessToken returns the current bearer token, empty when anonymous
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// TokenExpiry returns the expiry claim of the access token, parsed without
// verification. Advisory only: the session never validates tokens locally,
// and an opaque token yields the zero time.
func (m *Manager) TokenExpiry() time.Time {
	token := m.AccessToken()
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Subscribe registers a session observer. The returned channel carries the
// latest snapshot after each transition; a slow subscriber only ever misses
// intermediate states, never the latest one. The cancel func unsubscribes.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 1)
	m.subs[id] = ch
	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// publish pushes the current snapshot to every subscriber, latest-wins
func (m *Manager) publish(snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// setState mutates session state under the lock and publishes the result
func (m *Manager) setState(mutate func()) {
	m.mu.Lock()
	mutate()
	snap := Snapshot{State: m.state, User: m.user}
	m.mu.Unlock()
	m.publish(snap)
}

// Login authenticates with the backend. Token acquisition and the profile
// fetch are one sequential pipeline with a single failure exit: if the
// profile fetch fails the just-persisted tokens are rolled back and the
// session returns to Anonymous with one merged error. Exactly one
// notification is emitted either way.
func (m *Manager) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	m.setState(func() { m.state = Authenticating })

	var pair models.TokenPair
	creds := models.Credentials{Username: username, Password: password}
	if err := m.api.Do(ctx, http.MethodPost, "/auth/login", "", creds, &pair); err != nil {
		m.setState(func() { m.state = Anonymous })
		// The generic message deliberately does not say whether the
		// username or the password was wrong.
		msg := messageOf(err, genericLoginFailure)
		m.notifier.Error(msg)
		return nil, backend.NewError(kindOf(err), msg)
	}

	// Persist the pair before the profile fetch; the rollback below
	// guarantees tokens never outlive a failed identity.
	m.setState(func() {
		m.accessToken = pair.AccessToken
		if pair.RefreshToken != "" {
			m.refreshToken = pair.RefreshToken
		}
	})
	if err := m.store.Save(tokenstore.State{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
		log.Warn().Err(err).Msg("could not persist tokens")
	}

	var user models.User
	if err := m.api.Do(ctx, http.MethodGet, "/auth/me", pair.AccessToken, nil, &user); err != nil {
		// Not actually logged in: roll back everything and surface one
		// merged failure for the whole login attempt.
		m.clearSession()
		msg := "Signed in, but your profile could not be loaded. Please log in again."
		m.notifier.Error(msg)
		return nil, &backend.Error{Kind: kindOf(err), Message: msg, Err: err}
	}

	m.setState(func() {
		m.state = Authenticated
		m.user = &user
	})
	if err := m.store.Save(tokenstore.State{
		AccessToken:  pair.AccessToken,
		RefreshToken: m.currentRefreshToken(),
		User:         &user,
	}); err != nil {
		log.Warn().Err(err).Msg("could not persist session")
	}

	m.notifier.Success("Logged in as " + user.Username + ".")

	surface := SurfaceDefault
	if user.IsAdmin() {
		surface = SurfaceAdmin
	}
	return &LoginResult{User: &user, Surface: surface}, nil
}

// Logout notifies the backend best-effort and always clears local state.
// It is idempotent, reaches Anonymous from any state, and never fails
// visibly: the error return is intentionally absent.
func (m *Manager) Logout(ctx context.Context) {
	token := m.AccessToken()
	if token != "" {
		if err := m.api.Do(ctx, http.MethodPost, "/auth/logout", token, struct{}{}, nil); err != nil {
			log.Debug().Err(err).Msg("logout notification failed; clearing session anyway")
		}
	}
	m.clearSession()
	m.notifier.Info("Logged out.")
}

// Refresh exchanges the refresh token for a new access token. Without a
// refresh token it fails immediately, no network call. Failure of any kind
// forces the session to Anonymous.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refreshToken := m.refreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		m.clearSession()
		return backend.NewError(backend.KindUnauthenticated, "no refresh token")
	}

	m.setState(func() { m.state = RefreshingToken })

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	body := map[string]string{"refreshToken": refreshToken}
	if err := m.api.Do(ctx, http.MethodPost, "/auth/refresh", "", body, &resp); err != nil {
		m.clearSession()
		msg := "Your session has expired. Please log in again."
		m.notifier.Error(msg)
		return &backend.Error{Kind: backend.KindUnauthenticated, Message: msg, Err: err}
	}

	// Access token replaced in place; user and refresh token unchanged.
	m.setState(func() {
		m.state = Authenticated
		m.accessToken = resp.AccessToken
	})
	m.mu.Lock()
	persisted := tokenstore.State{AccessToken: m.accessToken, RefreshToken: m.refreshToken, User: m.user}
	m.mu.Unlock()
	if err := m.store.Save(persisted); err != nil {
		log.Warn().Err(err).Msg("could not persist refreshed token")
	}
	return nil
}

// ForceLogout clears the session without a backend call or notification.
// The request gateway invokes it when token recovery fails mid-request.
func (m *Manager) ForceLogout() {
	m.clearSession()
}

// clearSession drops all session state and storage, reaching Anonymous
func (m *Manager) clearSession() {
	m.setState(func() {
		m.state = Anonymous
		m.user = nil
		m.accessToken = ""
		m.refreshToken = ""
	})
	if err := m.store.Clear(); err != nil {
		log.Warn().Err(err).Msg("could not clear persisted session")
	}
}

func (m *Manager) currentRefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshToken
}

// messageOf prefers the backend's verbatim message over the fallback
func messageOf(err error, fallback string) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func kindOf(err error) backend.Kind {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return backend.KindNetwork
}
