// v0
// internal/cache/latest.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nrgchamp/ventilation/internal/models"
)

// LatestStore keeps the most recent processed snapshot for the HTTP API.
type LatestStore interface {
	Put(ctx context.Context, s models.Snapshot) error
	Latest(ctx context.Context) (models.Snapshot, bool, error)
	Close() error
}

const latestKey = "latest"

// Memory keeps the snapshot in process.
type Memory struct {
	c *Cache[models.Snapshot]
}

func NewMemory(ttl time.Duration, obs Observer) *Memory {
	return &Memory{c: New[models.Snapshot](ttl, obs)}
}

func (m *Memory) Put(_ context.Context, s models.Snapshot) error {
	m.c.Set(latestKey, s)
	return nil
}

func (m *Memory) Latest(context.Context) (models.Snapshot, bool, error) {
	s, ok := m.c.Get(latestKey)
	return s, ok, nil
}

func (m *Memory) Close() error { return nil }

// Redis shares the snapshot between replicas under a single JSON key.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	obs    Observer
}

func NewRedis(client redis.UniversalClient, key string, ttl time.Duration, obs Observer) *Redis {
	return &Redis{client: client, key: key, ttl: ttl, obs: obs}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int, key string, ttl time.Duration, obs Observer) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, key, ttl, obs), nil
}

func (r *Redis) Put(ctx context.Context, s models.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, max(r.ttl, 0)).Err()
}

func (r *Redis) Latest(ctx context.Context) (models.Snapshot, bool, error) {
	var s models.Snapshot
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.miss()
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		r.miss()
		return s, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if r.obs != nil {
		r.obs.CacheHit()
	}
	return s, true, nil
}

func (r *Redis) miss() {
	if r.obs != nil {
		r.obs.CacheMiss()
	}
}

func (r *Redis) Close() error { return r.client.Close() }
