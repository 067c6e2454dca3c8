package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-app/board"
)

// RedisSnapshots stores the snapshot as a single JSON value.
type RedisSnapshots struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshots stores snapshots under key.
func NewRedisSnapshots(client *redis.Client, key string) *RedisSnapshots {
	return &RedisSnapshots{client: client, key: snapshotCacheKey(key)}
}

func (r *RedisSnapshots) Load(ctx context.Context) (board.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return board.Snapshot{}, ErrSnapshotNotFound
		}
		return board.Snapshot{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var snap board.Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return board.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisSnapshots) Save(ctx context.Context, snap board.Snapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisSnapshots) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func snapshotCacheKey(name string) string {
	return "snapshot:" + name
}

// ParseRedisOptions accepts either a redis:// URL or an Azure style
// "host:port,password=...,ssl=true" connection string.
func ParseRedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid redis connection string %q", conn)
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
