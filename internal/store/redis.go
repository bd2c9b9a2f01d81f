// Package store provides storage backends for BioFlow.
//
// This file implements a Redis-backed key-value store. Each namespace is one
// Redis hash so Keys and Clear are single commands.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client  *redis.Client
	hashKey string
}

// NewRedisStore connects to the redis:// URL given as DSN.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	cfg := applyOptions(opts)
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "", "namespace", cfg.Namespace)
	if cfg.DSN == "" {
		slog.Error("RedisStore URL not set")
		return nil, fmt.Errorf("redis URL not set")
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("RedisStore failed to parse URL", "error", err)
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.Namespace), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{client: client, hashKey: prefix + ":" + namespace}
}

// Get reads one field of the namespace hash; a missing field is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		slog.Debug("RedisStore Get not found", "key", key)
		return "", false, nil
	}
	if err != nil {
		slog.Error("RedisStore Get failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes one field of the namespace hash.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hashKey, key, value).Err(); err != nil {
		slog.Error("RedisStore Set failed", "error", err, "key", key)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	slog.Debug("RedisStore Set succeeded", "key", key, "bytes", len(value))
	return nil
}

// Delete removes one field; deleting a missing key succeeds.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hashKey, key).Err(); err != nil {
		slog.Error("RedisStore Delete failed", "error", err, "key", key)
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the fields of the namespace hash in sorted order.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hashKey).Result()
	if err != nil {
		slog.Error("RedisStore Keys failed", "error", err)
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear drops the whole namespace hash.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.hashKey).Err(); err != nil {
		slog.Error("RedisStore Clear failed", "error", err, "hash", s.hashKey)
		return fmt.Errorf("failed to clear %s: %w", s.hashKey, err)
	}
	slog.Info("RedisStore Clear succeeded", "hash", s.hashKey)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
