package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user_session:"

	// Keys outlive the logical expiry by this much so Validate can still
	// observe an expired record and report it as such before deleting it.
	// The extra TTL only garbage-collects sessions nobody presents again.
	expiryGrace = 24 * time.Hour
)

// RedisStore keeps sessions in Redis: one key per token plus a per-user
// index key used to evict the previous session on login.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, userID string) (Session, error) {
	token, err := NewToken()

	if err != nil {
		return Session{}, err
	}

	// single active session per user: drop whatever was there before
	old, err := s.rdb.Get(ctx, userKeyPrefix+userID).Result()

	if err != nil && !errors.Is(err, redis.Nil) {
		return Session{}, err
	}

	if old != "" {
		if err := s.rdb.Del(ctx, sessionKeyPrefix+old).Err(); err != nil {
			return Session{}, err
		}
	}

	sess := Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}

	payload, err := json.Marshal(sess)

	if err != nil {
		return Session{}, err
	}

	keyTTL := s.ttl + expiryGrace

	if err := s.rdb.Set(ctx, sessionKeyPrefix+token, payload, keyTTL).Err(); err != nil {
		return Session{}, err
	}

	if err := s.rdb.Set(ctx, userKeyPrefix+userID, token, keyTTL).Err(); err != nil {
		return Session{}, err
	}

	return sess, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}

		return "", err
	}

	var sess Session

	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return "", ErrInvalidToken
	}

	if sess.ExpiredAt(time.Now().UTC()) {
		// lazy eviction: next lookup of this token reports invalid
		s.deleteSession(ctx, sess.UserID, token)
		return "", ErrExpired
	}

	return sess.UserID, nil
}

// Revoke drops the session unconditionally. Revoking an unknown token
// is not an error.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return err
	}

	var sess Session

	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return s.rdb.Del(ctx, sessionKeyPrefix+token).Err()
	}

	s.deleteSession(ctx, sess.UserID, token)

	return nil
}

func (s *RedisStore) deleteSession(ctx context.Context, userID, token string) {
	_ = s.rdb.Del(ctx, sessionKeyPrefix+token).Err()

	// only clear the user index if it still points at this token
	current, err := s.rdb.Get(ctx, userKeyPrefix+userID).Result()

	if err == nil && current == token {
		_ = s.rdb.Del(ctx, userKeyPrefix+userID).Err()
	}
}
