// Package cache stores the calendar in Redis.
package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Client is the subset of Redis used by the calendar cache.
type Client interface {
	// ReplaceHashes replaces setKey with members and rewrites every hash
	// in hashes in a single transaction.
	ReplaceHashes(ctx context.Context, setKey string, members []string, hashes map[string]map[string]string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Ping(ctx context.Context) error
}

// RedisClient implements Client on top of go-redis.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient wraps an existing go-redis client.
func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Dial creates a go-redis client for the given address.
func Dial(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// ReplaceHashes queues every command in one MULTI/EXEC pipeline.
func (r *RedisClient) ReplaceHashes(ctx context.Context, setKey string, members []string, hashes map[string]map[string]string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, setKey)
		if len(members) > 0 {
			args := make([]interface{}, len(members))
			for i, m := range members {
				args[i] = m
			}
			pipe.SAdd(ctx, setKey, args...)
		}
		for key, fields := range hashes {
			pipe.Del(ctx, key)
			if len(fields) == 0 {
				continue
			}
			values := make(map[string]interface{}, len(fields))
			for k, v := range fields {
				values[k] = v
			}
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	return err
}

// SMembers lists the members of a set.
func (r *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

// HGetAll reads a whole hash. A missing key yields an empty map.
func (r *RedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// Ping checks connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
