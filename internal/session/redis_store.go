package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civcon/ussd-engine/internal/model"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string {
	return fmt.Sprintf("ussd:sess:%s", sessionID)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	raw, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if sess.SessionID == "" || !model.KnownStep(sess.Step) {
		return nil, fmt.Errorf("%w: step=%q", ErrCorrupted, sess.Step)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// Sliding expiry: every save restarts the TTL window.
	return s.rdb.Set(ctx, key(sess.SessionID), b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, key(sessionID)).Err()
}
