package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "http://localhost"); err == nil {
		t.Error("expected error for a non-redis URL")
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "redis://127.0.0.1:1/0")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestTransient(t *testing.T) {
	if transient(nil) != nil {
		t.Error("nil should stay nil")
	}

	err := transient(errors.New("dial tcp: connection refused"))
	if !IsRetryable(err) || !errors.Is(err, ErrNetwork) {
		t.Errorf("connection errors should be retryable network errors: %v", err)
	}

	// server replies are final
	reply := transient(redisReply("WRONGTYPE Operation against a key holding the wrong kind of value"))
	if IsRetryable(reply) {
		t.Error("server replies should not be retried")
	}
}

type redisReply string

func (e redisReply) Error() string { return string(e) }
func (redisReply) RedisError()     {}

var _ redis.Error = redisReply("")
