package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/letsur-dev/claude-peak/internal/types"
)

// SafetyMargin is the minimum remaining validity required before a
// cached token is reused without hitting the token endpoint.
const SafetyMargin = 5 * time.Minute

// TokenStore persists the durable token record. Defined here, at the
// consumer, so tests can substitute an in-memory fake.
type TokenStore interface {
	Load() (types.TokenRecord, error)
	Save(types.TokenRecord) error
	Clear() error
}

// Refresher performs the refresh exchange against the token endpoint.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (types.TokenPair, error)
}

// Manager owns the in-memory access-token cache and the refresh
// decision. The cache is never persisted directly; the store holds the
// durable copy.
type Manager struct {
	mu        sync.Mutex
	store     TokenStore
	refresher Refresher
	now       func() time.Time

	cachedToken  string
	cachedExpiry time.Time
}

func NewManager(store TokenStore, refresher Refresher) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
}

// GetValidAccessToken returns a token with at least SafetyMargin of
// validity left, refreshing if needed. Fails with
// types.ErrNoCredential when there is nothing to work from and
// types.ErrRefreshFailed when the exchange is rejected.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cachedToken != "" && m.cachedExpiry.After(now.Add(SafetyMargin)) {
		return m.cachedToken, nil
	}

	rec, err := m.store.Load()
	if err != nil {
		if errors.Is(err, types.ErrNoCredential) {
			return "", types.ErrNoCredential
		}
		// An unreadable store is indistinguishable from no credential
		// as far as the caller is concerned: the fix is to log in again.
		log.WithError(err).Warn("token store unreadable, treating as missing credential")
		return "", types.ErrNoCredential
	}

	if rec.ValidFor(now, SafetyMargin) {
		m.cachedToken = rec.AccessToken
		m.cachedExpiry = rec.Expiry()
		return rec.AccessToken, nil
	}

	if rec.RefreshToken == "" {
		return "", types.ErrNoCredential
	}
	return m.refreshLocked(ctx, rec.RefreshToken)
}

// ForceRefresh performs a refresh exchange regardless of the persisted
// record's expiry. Used after the server rejects a token the expiry
// arithmetic still considered valid.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Load()
	if err != nil {
		return "", types.ErrNoCredential
	}
	if rec.RefreshToken == "" {
		return "", types.ErrNoCredential
	}
	return m.refreshLocked(ctx, rec.RefreshToken)
}

// refreshLocked runs the exchange and persists the rotated record.
// Caller holds m.mu.
func (m *Manager) refreshLocked(ctx context.Context, refreshToken string) (string, error) {
	pair, err := m.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, types.ErrRefreshFailed) {
			return "", err
		}
		return "", types.ErrRefreshFailed
	}

	rec := pair.Record(m.now())
	if err := m.store.Save(rec); err != nil {
		return "", err
	}

	m.cachedToken = rec.AccessToken
	m.cachedExpiry = rec.Expiry()
	log.Infof("access token refreshed, expires_in=%ds", pair.ExpiresIn)
	return rec.AccessToken, nil
}

// Invalidate drops the in-memory cache. The persisted record is left
// alone; the next GetValidAccessToken re-evaluates from the store.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachedToken = ""
	m.cachedExpiry = time.Time{}
}

// Logout clears both the persisted record and the in-memory cache.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachedToken = ""
	m.cachedExpiry = time.Time{}
	return m.store.Clear()
}

// HandleLogin persists an initial token pair from the login flow and
// primes the cache so the next fetch skips the store entirely.
func (m *Manager) HandleLogin(pair types.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := pair.Record(m.now())
	if err := m.store.Save(rec); err != nil {
		return err
	}
	m.cachedToken = rec.AccessToken
	m.cachedExpiry = rec.Expiry()
	log.Infof("login succeeded, expires_in=%ds", pair.ExpiresIn)
	return nil
}
