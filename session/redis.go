package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis failures other than a missing key.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisPersister keeps one snapshot per browser session under
// "<prefix>:<id>". Server-side deployments use it to hold the state of many
// users in one Redis.
type RedisPersister struct {
	redis  redis.UniversalClient
	prefix string
	id     string
	ttl    time.Duration
}

// NewRedisPersister returns a persister for the snapshot of session id. A
// zero ttl keeps the key until cleared.
func NewRedisPersister(client redis.UniversalClient, prefix, id string, ttl time.Duration) *RedisPersister {
	if prefix == "" {
		prefix = SnapshotKey
	}
	return &RedisPersister{
		redis:  client,
		prefix: prefix,
		id:     id,
		ttl:    ttl,
	}
}

func (p *RedisPersister) key() string {
	return p.prefix + ":" + p.id
}

// Key returns the Redis key this persister writes.
func (p *RedisPersister) Key() string {
	return p.key()
}

func (p *RedisPersister) Load(ctx context.Context) (*Snapshot, error) {
	data, err := p.redis.Get(ctx, p.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return DecodeSnapshot(data)
}

// Save writes the snapshot and resets its TTL.
func (p *RedisPersister) Save(ctx context.Context, s Snapshot) error {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, p.key(), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear is idempotent.
func (p *RedisPersister) Clear(ctx context.Context) error {
	if err := p.redis.Del(ctx, p.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures a Redis round trip.
func (p *RedisPersister) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := p.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
