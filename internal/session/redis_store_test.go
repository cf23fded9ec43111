package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// These tests need a live Redis; set TEST_REDIS_ADDR to run them.

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")

	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 9})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})

	return rdb
}

func TestRedisStore_IssueValidateRevoke(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(testRedis(t), 24*time.Hour)

	sess, err := s.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := s.Validate(ctx, sess.Token)
	if err != nil || got != "user-1" {
		t.Fatalf("Validate = (%q, %v), want (user-1, nil)", got, err)
	}

	if err := s.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := s.Validate(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("validate after revoke err = %v, want ErrInvalidToken", err)
	}

	// revoking again is a no-op
	if err := s.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestRedisStore_SecondLoginEvictsFirst(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(testRedis(t), 24*time.Hour)

	first, err := s.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	second, err := s.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Validate(ctx, first.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token validate err = %v, want ErrInvalidToken", err)
	}

	if got, err := s.Validate(ctx, second.Token); err != nil || got != "user-1" {
		t.Fatalf("new token validate = (%q, %v), want (user-1, nil)", got, err)
	}
}

func TestRedisStore_ExpiredIsLazilyEvicted(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(t)

	// a store whose sessions are already expired at issue time
	s := NewRedisStore(rdb, 24*time.Hour)
	s.ttl = -time.Minute

	sess, err := s.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Validate(ctx, sess.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired validate err = %v, want ErrExpired", err)
	}

	if _, err := s.Validate(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("second validate err = %v, want ErrInvalidToken", err)
	}
}
