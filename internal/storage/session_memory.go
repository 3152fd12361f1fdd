package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// MemorySessionStore keeps sessions in process memory. Sessions do not
// survive a restart and are not shared between instances, so it only suits
// single-instance deployments and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.OrderSession
	ttl      time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemorySessionStore creates a store whose sessions expire after ttl of
// inactivity. When sweepEvery is positive a janitor goroutine removes
// expired sessions until Close is called.
func NewMemorySessionStore(ttl, sweepEvery time.Duration) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[string]*models.OrderSession),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.cleanupExpiredSessions(sweepEvery)
	}
	return s
}

func (s *MemorySessionStore) Get(ctx context.Context, phone string) (*models.OrderSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[phone]
	if !exists || session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *models.OrderSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var current int64
	if existing, exists := s.sessions[session.Phone]; exists && !existing.Expired(now) {
		current = existing.Version
	}
	if current != session.Version {
		return ErrVersionConflict
	}

	session.Version++
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.ttl)

	s.sessions[session.Phone] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, phone)
	return nil
}

func (s *MemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	count := 0
	for _, session := range s.sessions {
		if !session.Expired(now) {
			count++
		}
	}
	return count, nil
}

// Close stops the janitor goroutine.
func (s *MemorySessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// sweep removes expired sessions and returns how many were dropped.
func (s *MemorySessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for phone, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, phone)
			removed++
		}
	}
	return removed
}

func (s *MemorySessionStore) cleanupExpiredSessions(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Cleaned up expired order sessions")
			}
		}
	}
}
