package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	backupKeyPrefix = "cartsync:"
	backupTTL       = 30 * 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
	prefix string
}

// NewRedisAdapter scopes every key under namespace, so several sessions can
// share one Redis without overwriting each other's backup.
func NewRedisAdapter(client *redis.Client, namespace string) *RedisAdapter {
	prefix := backupKeyPrefix
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &RedisAdapter{client: client, prefix: prefix}
}

func (r *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set refreshes the expiry on every write; an abandoned backup ages out.
func (r *RedisAdapter) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, backupTTL).Err()
}

func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
