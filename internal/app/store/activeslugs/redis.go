package activeslugs

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces active slug keys.
const DefaultRedisPrefix = "learnhub:active_slug:"

// Redis stores active slugs as plain string keys.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis store whose keys start with prefix (blank means
// DefaultRedisPrefix). Each Save refreshes the key's ttl; ttl <= 0 keeps
// keys forever.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Redis) key(clientID string) string {
	return s.prefix + clientID
}

// Load returns the slug stored for clientID.
func (s *Redis) Load(ctx context.Context, clientID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Save writes the slug for clientID.
func (s *Redis) Save(ctx context.Context, clientID, slug string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, s.key(clientID), slug, ttl).Err()
}

// Delete removes the key for clientID.
func (s *Redis) Delete(ctx context.Context, clientID string) error {
	return s.rdb.Del(ctx, s.key(clientID)).Err()
}
