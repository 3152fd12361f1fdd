package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

const sessionTTL = 30 * time.Minute

// SessionStoreSuite checks the SessionStore contract. advance moves the
// store's clock forward.
type SessionStoreSuite struct {
	suite.Suite
	setup   func(t *testing.T) (SessionStore, func(time.Duration))
	store   SessionStore
	advance func(time.Duration)
	ctx     context.Context
}

func TestMemorySessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{setup: func(t *testing.T) (SessionStore, func(time.Duration)) {
		store := NewMemorySessionStore(sessionTTL, 0)
		t.Cleanup(func() { _ = store.Close() })
		now := time.Now()
		store.now = func() time.Time { return now }
		return store, func(d time.Duration) { now = now.Add(d) }
	}})
}

func TestRedisSessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{setup: func(t *testing.T) (SessionStore, func(time.Duration)) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedisSessionStore(rdb, "", sessionTTL), mr.FastForward
	}})
}

func (s *SessionStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store, s.advance = s.setup(s.T())
}

func newSession(phone string) *models.OrderSession {
	session := &models.OrderSession{
		Phone:      phone,
		CustomerID: "CUS-1",
		MenuID:     "MNU-1",
		State:      models.StateAwaitingSelection,
		MenuSnapshot: []models.SessionMenuItem{
			{MenuItemID: "ITM-1", Name: "Burger", PriceCents: 1200},
			{MenuItemID: "ITM-2", Name: "Fries", PriceCents: 500},
		},
	}
	return session
}

func (s *SessionStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "+15550000000")
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *SessionStoreSuite) TestSaveAndGetRoundTrip() {
	session := newSession("+15551234567")
	s.Require().NoError(s.store.Save(s.ctx, session))
	s.Equal(int64(1), session.Version)
	s.False(session.CreatedAt.IsZero())
	s.True(session.ExpiresAt.After(session.UpdatedAt))

	got, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.Equal(session.MenuSnapshot, got.MenuSnapshot)
	s.Equal(models.StateAwaitingSelection, got.State)

	got.SetItems([]models.SessionItem{{MenuItemID: "ITM-1", Name: "Burger", UnitPriceCents: 1200, Quantity: 1}})
	got.State = models.StateConfirmingOrder
	s.Require().NoError(s.store.Save(s.ctx, got))
	s.Equal(int64(2), got.Version)

	again, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)
	s.Equal(int64(1200), again.TotalAmountCents)
	s.Equal(models.StateConfirmingOrder, again.State)
	s.True(session.CreatedAt.Equal(again.CreatedAt))
}

func (s *SessionStoreSuite) TestGetReturnsCopy() {
	s.Require().NoError(s.store.Save(s.ctx, newSession("+15551234567")))

	got, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)
	got.MenuSnapshot[0].Name = "changed"

	again, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)
	s.Equal("Burger", again.MenuSnapshot[0].Name)
}

func (s *SessionStoreSuite) TestStaleVersionConflicts() {
	s.Require().NoError(s.store.Save(s.ctx, newSession("+15551234567")))

	a, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)
	b, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Save(s.ctx, a))
	s.ErrorIs(s.store.Save(s.ctx, b), ErrVersionConflict)

	// A brand new session cannot overwrite a live one either.
	s.ErrorIs(s.store.Save(s.ctx, newSession("+15551234567")), ErrVersionConflict)
}

func (s *SessionStoreSuite) TestDeleteIsIdempotent() {
	s.Require().NoError(s.store.Save(s.ctx, newSession("+15551234567")))
	s.Require().NoError(s.store.Delete(s.ctx, "+15551234567"))
	s.Require().NoError(s.store.Delete(s.ctx, "+15551234567"))

	_, err := s.store.Get(s.ctx, "+15551234567")
	s.ErrorIs(err, ErrSessionNotFound)

	// Deleted sessions restart from version zero.
	s.NoError(s.store.Save(s.ctx, newSession("+15551234567")))
}

func (s *SessionStoreSuite) TestSessionsExpire() {
	s.Require().NoError(s.store.Save(s.ctx, newSession("+15551234567")))

	s.advance(sessionTTL - time.Minute)
	_, err := s.store.Get(s.ctx, "+15551234567")
	s.Require().NoError(err)

	s.advance(2 * time.Minute)
	_, err = s.store.Get(s.ctx, "+15551234567")
	s.ErrorIs(err, ErrSessionNotFound)

	// An expired session no longer blocks a fresh one.
	s.NoError(s.store.Save(s.ctx, newSession("+15551234567")))
}

func (s *SessionStoreSuite) TestCount() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Save(s.ctx, newSession(fmt.Sprintf("+1555000000%d", i))))
	}
	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *SessionStoreSuite) TestConcurrentSavesOneWinner() {
	s.Require().NoError(s.store.Save(s.ctx, newSession("+15551234567")))

	// Every writer reads the same version before any of them saves.
	sessions := make([]*models.OrderSession, 10)
	for i := range sessions {
		session, err := s.store.Get(s.ctx, "+15551234567")
		s.Require().NoError(err)
		sessions[i] = session
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(session *models.OrderSession) {
			defer wg.Done()
			if err := s.store.Save(s.ctx, session); err == nil {
				wins.Add(1)
			}
		}(session)
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func TestMemorySessionStoreSweep(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 0)
	defer store.Close()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), newSession("+15550000001")))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(context.Background(), newSession("+15550000002")))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, store.sweep())
	assert.Len(t, store.sessions, 1)
}

func TestMemorySessionStoreJanitorStops(t *testing.T) {
	store := NewMemorySessionStore(time.Millisecond, 5*time.Millisecond)
	require.NoError(t, store.Save(context.Background(), newSession("+15550000001")))

	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.sessions) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestRedisSessionStoreUsesPrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisSessionStore(rdb, "test:session", 10*time.Minute)
	require.NoError(t, store.Save(context.Background(), newSession("+15551234567")))

	assert.True(t, mr.Exists("test:session:+15551234567"))
	assert.Equal(t, 10*time.Minute, mr.TTL("test:session:+15551234567"))
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewRedisSessionStore(rdb, "", time.Minute)
	mr.Close()

	_, err := store.Get(context.Background(), "+15551234567")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
