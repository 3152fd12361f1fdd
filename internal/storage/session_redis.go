package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// DefaultSessionPrefix namespaces session keys in Redis.
const DefaultSessionPrefix = "sms:session"

// RedisSessionStore keeps sessions in Redis so every instance sees the same
// conversation state. Expiry is delegated to Redis key TTLs.
type RedisSessionStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &RedisSessionStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisSessionStore) key(phone string) string {
	return s.prefix + ":" + phone
}

func (s *RedisSessionStore) Get(ctx context.Context, phone string) (*models.OrderSession, error) {
	data, err := s.rdb.Get(ctx, s.key(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.OrderSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save performs the version check inside WATCH/MULTI so a concurrent writer
// on another instance aborts the transaction.
func (s *RedisSessionStore) Save(ctx context.Context, session *models.OrderSession) error {
	key := s.key(session.Phone)

	var saved *models.OrderSession
	txf := func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored models.OrderSession
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			current = stored.Version
		}
		if current != session.Version {
			return ErrVersionConflict
		}

		now := s.now()
		next := session.Clone()
		next.Version++
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		next.UpdatedAt = now
		next.ExpiresAt = now.Add(s.ttl)

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			saved = next
		}
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return ErrVersionConflict
	case err != nil:
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("save session: %w", err)
	}
	*session = *saved
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, phone string) error {
	if err := s.rdb.Del(ctx, s.key(phone)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Count scans the session keyspace; it is meant for health output only.
func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":*", 200).Result()
		if err != nil {
			return 0, fmt.Errorf("count sessions: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
