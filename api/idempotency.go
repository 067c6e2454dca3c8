package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "dedupe"

// RedisDeduper stores processed idempotency keys in Redis so all instances
// can avoid reprocessing the same command.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", scope, dedupeKeyPrefix, key)
}

// Remove deletes a previously recorded key.
func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}

// AddMany records keys with one pipelined SETNX per key. The result marks
// the keys that were new. On error the result still reports every key that
// was recorded so the caller can roll them back.
func (r *RedisDeduper) AddMany(ctx context.Context, scope string, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	added := make([]bool, len(keys))
	cmds := make([]*redis.BoolCmd, len(keys))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.SetNX(ctx, r.key(scope, key), 1, r.ttl)
		}
		return nil
	})
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if ok, cmdErr := cmd.Result(); cmdErr == nil {
			added[i] = ok
		} else if err == nil {
			err = cmdErr
		}
	}
	return added, err
}

// MemoryDeduper keeps idempotency keys in process memory. It is used when
// no redis is configured and only protects a single instance.
type MemoryDeduper struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDeduper remembers keys for ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (m *MemoryDeduper) AddMany(_ context.Context, scope string, keys []string) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.seen {
		if !exp.After(now) {
			delete(m.seen, k)
		}
	}
	out := make([]bool, len(keys))
	for i, key := range keys {
		k := scope + ":" + key
		if _, ok := m.seen[k]; ok {
			continue
		}
		m.seen[k] = now.Add(m.ttl)
		out[i] = true
	}
	return out, nil
}

func (m *MemoryDeduper) Remove(_ context.Context, scope, key string) error {
	m.mu.Lock()
	delete(m.seen, scope+":"+key)
	m.mu.Unlock()
	return nil
}
