package datastore

import (
	"context"
	"crypto/tls"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisBackend stores every key as a Redis string.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func openRedis(ctx context.Context, cfg *ConnectionConfig, protocol string) (Backend, error) {
	c := cfg.Redis
	if c.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	opts := &redis.Options{
		Addr:     c.Address,
		Password: c.Password,
		DB:       c.DB,
	}
	if protocol == "tls" {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: c.InsecureSkipVerify}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis: failed to reach %s", c.Address)
	}
	return &RedisBackend{client: client, prefix: c.KeyPrefix}, nil
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	err := b.client.Set(ctx, b.prefix+key, value, 0).Err()
	return errors.Wrapf(err, "redis: failed to set %s", key)
}

func (b *RedisBackend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	created, err := b.client.SetNX(ctx, b.prefix+key, value, 0).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis: failed to setnx %s", key)
	}
	return created, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis: failed to get %s", key)
	}
	return value, nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.prefix+key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis: failed to check %s", key)
	}
	return n > 0, nil
}

// Shutdown asks the server to persist its dataset in the background.
// The server itself keeps running; it is shared infrastructure.
func (b *RedisBackend) Shutdown(ctx context.Context) error {
	return errors.Wrap(b.client.BgSave(ctx).Err(), "redis: failed to request save")
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
