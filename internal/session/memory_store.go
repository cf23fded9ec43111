package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore mirrors RedisStore semantics in-process. It backs unit
// tests and local runs without a Redis instance.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	byTok  map[string]Session
	byUser map[string]string

	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &MemoryStore{
		ttl:    ttl,
		byTok:  make(map[string]Session),
		byUser: make(map[string]string),
		now:    time.Now,
	}
}

func (s *MemoryStore) Issue(ctx context.Context, userID string) (Session, error) {
	token, err := NewToken()

	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[userID]; ok {
		delete(s.byTok, old)
	}

	sess := Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}

	s.byTok[token] = sess
	s.byUser[userID] = token

	return sess, nil
}

func (s *MemoryStore) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byTok[token]

	if !ok {
		return "", ErrInvalidToken
	}

	if sess.ExpiredAt(s.now().UTC()) {
		delete(s.byTok, token)

		if s.byUser[sess.UserID] == token {
			delete(s.byUser, sess.UserID)
		}

		return "", ErrExpired
	}

	return sess.UserID, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byTok[token]

	if !ok {
		return nil
	}

	delete(s.byTok, token)

	if s.byUser[sess.UserID] == token {
		delete(s.byUser, sess.UserID)
	}

	return nil
}
