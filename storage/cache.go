package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-app/board"
)

// Cache wraps a SnapshotStore with a Redis read-through copy of the last
// snapshot. Saves go to the base store and then evict the cached copy, so a
// cached entry is never older than the base store.
type Cache struct {
	base  SnapshotStore
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base SnapshotStore, client *redis.Client, name string, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		key:   cachedSnapshotKey(name),
		ttl:   ttl,
	}
}

func (c *Cache) Load(ctx context.Context) (board.Snapshot, error) {
	if snap, ok := c.loadFromCache(ctx); ok {
		return snap, nil
	}

	snap, err := c.base.Load(ctx)
	if err != nil {
		return board.Snapshot{}, err
	}

	c.store(ctx, snap)
	return snap, nil
}

func (c *Cache) Save(ctx context.Context, snap board.Snapshot) error {
	if err := c.base.Save(ctx, snap); err != nil {
		_ = c.evict(ctx)
		return err
	}
	if err := c.evict(ctx); err != nil {
		return fmt.Errorf("evict cached snapshot: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) loadFromCache(ctx context.Context) (board.Snapshot, bool) {
	if c.redis == nil {
		return board.Snapshot{}, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return board.Snapshot{}, false
	}
	var snap board.Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return board.Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) store(ctx context.Context, snap board.Snapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, c.key).Err()
}

func cachedSnapshotKey(name string) string {
	return "snapshot-cache:" + name
}
