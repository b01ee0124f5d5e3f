package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries the token of
// the acquire being released.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a best-effort lock keyed per update so two workers never
// deliver the same update at once.
type RedisGuard struct {
	rdb *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb, tokens: make(map[string]string)}
}

// Acquire reports whether the caller now holds key. The lock expires after
// ttl so a crashed worker cannot hold it forever.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}

	g.mu.Lock()
	g.tokens[key] = token
	g.mu.Unlock()
	return true, nil
}

// Release drops key if this guard still owns it. A lock that expired and
// was taken by another worker is left alone.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	token, ok := g.tokens[key]
	delete(g.tokens, key)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return releaseScript.Run(ctx, g.rdb, []string{key}, token).Err()
}
