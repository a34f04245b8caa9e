package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	saved []fin.Token
	err   error
}

func (s *memoryStore) SaveToken(_ context.Context, _ uuid.UUID, token fin.Token) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, token)
	return nil
}

// fetcher behaves like an adapter: it stores what it fetched.
type fetcher struct {
	manager *Manager
	token   fin.Token
	err     error
	calls   int
}

func (f *fetcher) FetchAccessToken(ctx context.Context) (*fin.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := f.manager.Store(ctx, f.token); err != nil {
		return nil, err
	}
	token := f.manager.Token()
	return &token, nil
}

func setup(initial fin.Token, fresh fin.Token) (*Manager, *fetcher, *memoryStore) {
	store := &memoryStore{}
	f := &fetcher{token: fresh}
	m := NewManager(uuid.New(), initial, f, store, WithClock(func() time.Time { return now }))
	f.manager = m
	return m, f, store
}

func TestEnsureToken_UsableTokenIsNotRefreshed(t *testing.T) {
	initial := fin.Token{AccessToken: "current", Type: "Bearer", Expiry: now.Add(time.Hour)}
	m, f, store := setup(initial, fin.Token{AccessToken: "fresh"})

	token, err := m.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "current", token.AccessToken)
	assert.Zero(t, f.calls)
	assert.Empty(t, store.saved)
}

func TestEnsureToken_TokenWithoutExpiryIsUsable(t *testing.T) {
	m, f, _ := setup(fin.Token{AccessToken: "forever"}, fin.Token{})

	token, err := m.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "forever", token.AccessToken)
	assert.Zero(t, f.calls)
}

func TestEnsureToken_RefreshesMissingOrExpired(t *testing.T) {
	tests := []struct {
		name    string
		initial fin.Token
	}{
		{"absent", fin.Token{}},
		{"expired", fin.Token{AccessToken: "old", Expiry: now.Add(-time.Minute)}},
		{"expires exactly now", fin.Token{AccessToken: "old", Expiry: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := fin.Token{AccessToken: "fresh", Expiry: now.Add(9 * time.Hour)}
			m, f, store := setup(tt.initial, fresh)

			token, err := m.EnsureToken(context.Background())

			require.NoError(t, err)
			assert.Equal(t, 1, f.calls)
			assert.Equal(t, "fresh", token.AccessToken)
			assert.Equal(t, "Bearer", token.Type)

			require.Len(t, store.saved, 1)
			assert.Equal(t, "fresh", store.saved[0].AccessToken)
			assert.Equal(t, "Bearer", store.saved[0].Type)
			assert.Equal(t, now.Add(9*time.Hour), store.saved[0].Expiry)

			_, err = m.EnsureToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, f.calls, "fresh token must be reused")
		})
	}
}

func TestEnsureToken_FetchFailure(t *testing.T) {
	m, f, store := setup(fin.Token{}, fin.Token{})
	f.err = errors.New("401 invalid_client")

	token, err := m.EnsureToken(context.Background())

	assert.Nil(t, token)
	assert.Error(t, err)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, store.saved)
}

func TestEnsureToken_NoFetcher(t *testing.T) {
	m := NewManager(uuid.New(), fin.Token{}, nil, nil)

	token, err := m.EnsureToken(context.Background())

	assert.Nil(t, token)
	assert.Error(t, err)
}

func TestStore_RevertsWhenPersistFails(t *testing.T) {
	previous := fin.Token{AccessToken: "previous", Type: "Bearer"}
	m, _, store := setup(previous, fin.Token{})
	store.err = errors.New("connection reset")

	err := m.Store(context.Background(), fin.Token{AccessToken: "unsaved"})

	require.Error(t, err)
	assert.Equal(t, previous, m.Token())
}

func TestStore_DefaultsTokenType(t *testing.T) {
	m, _, store := setup(fin.Token{}, fin.Token{})

	require.NoError(t, m.Store(context.Background(), fin.Token{AccessToken: "abc"}))

	assert.Equal(t, "Bearer", m.Token().Type)
	assert.Equal(t, "Bearer", store.saved[0].Type)
}
