package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Khaos-s/car-pass/internal/repository"
)

// RedisCooldown implements CooldownStore backed by Redis.
type RedisCooldown struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ repository.CooldownStore = (*RedisCooldown)(nil)

// NewRedisCooldown constructs a Redis-backed cooldown store with the given
// window.
func NewRedisCooldown(client redis.UniversalClient, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl}
}

// Acquire claims the key for one cooldown window. It returns false when the
// key is still held from a previous call.
func (s *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, "cooldown:"+key, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire cooldown: %w", err)
	}
	return ok, nil
}
