package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/vurg/notification-service/app/lock"
)

const (
	expiryDelta    = 30 * time.Second
	lockTTL        = 30 * time.Second
	lockRetryDelay = 250 * time.Millisecond
)

// Manager hands out valid tokens, refreshing and persisting them as needed.
// Refreshes are serialized in-process by a mutex and across processes by the
// locker.
type Manager struct {
	store     Store
	refresher Refresher
	locker    lock.Locker
	lockKey   string
	logger    logrus.FieldLogger

	mu  sync.Mutex
	now func() time.Time
}

// NewManager builds a credential manager.
func NewManager(store Store, refresher Refresher, locker lock.Locker, lockKey string, logger logrus.FieldLogger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		locker:    locker,
		lockKey:   lockKey,
		logger:    logger,
		now:       time.Now,
	}
}

// State reports the lifecycle state of the stored credential.
func (m *Manager) State(ctx context.Context) (State, error) {
	tok, err := m.store.Load(ctx)
	if err != nil {
		return "", &Error{Op: "load", Err: err}
	}
	return m.stateOf(tok), nil
}

// Authorize stores a freshly consented token.
func (m *Manager) Authorize(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return &Error{Op: "authorize", Err: errors.New("token has no access token")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Persist(ctx, tok); err != nil {
		return &Error{Op: "persist", Err: err}
	}
	return nil
}

// Token returns a valid access token, refreshing it first when expired.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.store.Load(ctx)
	if err != nil {
		return nil, &Error{Op: "load", Err: err}
	}
	switch m.stateOf(tok) {
	case StateAuthorized:
		return tok, nil
	case StateUnauthenticated:
		return nil, &Error{Op: "load", Err: ErrConsentRequired}
	}

	if err := m.acquire(ctx); err != nil {
		return nil, &Error{Op: "lock", Err: err}
	}
	defer func() {
		_ = m.locker.Release(context.Background(), m.lockKey)
	}()

	// Another process may have refreshed while we waited for the lock.
	if current, err := m.store.Load(ctx); err == nil && m.stateOf(current) == StateAuthorized {
		return current, nil
	}

	refreshed, err := m.refresher.Refresh(ctx, tok)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			m.logger.WithError(err).Warn("credential refresh denied, clearing stored token")
			if delErr := m.store.Delete(ctx); delErr != nil {
				m.logger.WithError(delErr).Error("failed to delete rejected credential")
			}
			return nil, &Error{Op: "refresh", Err: fmt.Errorf("%w: %v", ErrRefreshDenied, err)}
		}
		return nil, &Error{Op: "refresh", Err: err}
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}

	if err := m.store.Persist(ctx, refreshed); err != nil {
		return nil, &Error{Op: "persist", Err: err}
	}
	m.logger.WithField("expiry", refreshed.Expiry).Info("credential refreshed")
	return refreshed, nil
}

// Transport authorizes each outgoing request with a token loaded on that
// request's context. A client built once at startup therefore keeps working
// for sends that outlive the context it was built on.
func (m *Manager) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{manager: m, base: base}
}

type transport struct {
	manager *Manager
	base    http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.manager.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	authed := req.Clone(req.Context())
	tok.SetAuthHeader(authed)
	return t.base.RoundTrip(authed)
}

func (m *Manager) stateOf(tok *oauth2.Token) State {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return StateUnauthenticated
	}
	if tok.AccessToken != "" && (tok.Expiry.IsZero() || tok.Expiry.Add(-expiryDelta).After(m.now())) {
		return StateAuthorized
	}
	if tok.RefreshToken == "" {
		return StateUnauthenticated
	}
	return StateExpired
}

// acquire waits for the refresh lock until ctx is done.
func (m *Manager) acquire(ctx context.Context) error {
	for {
		err := m.locker.Acquire(ctx, m.lockKey, lockTTL)
		if !errors.Is(err, lock.ErrNotAcquired) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
