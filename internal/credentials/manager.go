// Package credentials owns the access token lifecycle of a payment service.
package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/google/uuid"
)

// Fetcher obtains a fresh access token from the payment service. It is
// expected to hand the token to Manager.Store before returning it.
type Fetcher interface {
	FetchAccessToken(ctx context.Context) (*fin.Token, error)
}

// TokenStore persists the token triad of a service.
type TokenStore interface {
	SaveToken(ctx context.Context, serviceID uuid.UUID, token fin.Token) error
}

// Manager hands out a usable token, refreshing it through the Fetcher
// when it is missing or expired.
//
// Concurrent refreshes are not serialized: two callers finding an expired
// token both fetch, and the last stored token wins.
type Manager struct {
	serviceID uuid.UUID
	fetcher   Fetcher
	store     TokenStore
	metrics   *observability.Metrics
	now       func() time.Time

	mu    sync.RWMutex
	token fin.Token
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager starts from the token stored with the service configuration.
// The fetcher may be set later with SetFetcher.
func NewManager(serviceID uuid.UUID, initial fin.Token, fetcher Fetcher, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		serviceID: serviceID,
		fetcher:   fetcher,
		store:     store,
		token:     initial,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFetcher sets the refresh callback.
func (m *Manager) SetFetcher(f Fetcher) {
	m.fetcher = f
}

// Token returns the current in-memory token.
func (m *Manager) Token() fin.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// EnsureToken returns the current token if usable, otherwise fetches one.
// A nil token with a nil error means the service issued none.
func (m *Manager) EnsureToken(ctx context.Context) (*fin.Token, error) {
	current := m.Token()
	if current.Usable(m.now()) {
		return &current, nil
	}

	if m.fetcher == nil {
		return nil, fmt.Errorf("no token fetcher for service %s", m.serviceID)
	}

	token, err := m.fetcher.FetchAccessToken(ctx)
	if err != nil {
		m.count("failure")
		return nil, err
	}
	m.count("success")
	return token, nil
}

// Store replaces the in-memory token and persists it. If persisting fails
// the previous token is restored, so an unsaved token is never served.
func (m *Manager) Store(ctx context.Context, token fin.Token) error {
	if token.Type == "" {
		token.Type = fin.DefaultTokenType
	}

	m.mu.Lock()
	previous := m.token
	m.token = token
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.SaveToken(ctx, m.serviceID, token); err != nil {
		m.mu.Lock()
		if m.token == token {
			m.token = previous
		}
		m.mu.Unlock()
		return fmt.Errorf("persist access token: %w", err)
	}
	return nil
}

func (m *Manager) count(result string) {
	if m.metrics != nil {
		m.metrics.TokenRefreshesTotal.WithLabelValues(result).Inc()
	}
}
