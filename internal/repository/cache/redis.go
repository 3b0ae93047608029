package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// сколько ключей запрашивать за один SCAN
const scanBatch = 100

// Redis хранит кэш в Redis, TTL поддерживается на стороне сервера
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedis создаёт кэш поверх уже сконфигурированного клиента
func NewRedis(client *redis.Client, defaultTTL time.Duration) *Redis {
	return &Redis{client: client, defaultTTL: defaultTTL}
}

// Get возвращает значение и true, если ключ существует
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "repository.cache.redis.Get"

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

// Set кладёт значение с TTL; ttl <= 0 означает TTL по умолчанию
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "repository.cache.redis.Set"

	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет ключ
func (r *Redis) Delete(ctx context.Context, key string) error {
	const op = "repository.cache.redis.Delete"

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeletePrefix удаляет все ключи с указанным префиксом
// SCAN не блокирует сервер, но ключи, добавленные во время обхода, могут уцелеть
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	const op = "repository.cache.redis.DeletePrefix"

	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: scan failed: %w", op, err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
