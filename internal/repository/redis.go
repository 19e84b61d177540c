package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pawbook/internal/config"
	"pawbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// Cache keys follow the convention "<providerID>:<rest>"; invalidation
// tracks every live key in a per-provider set so one booking commit can
// drop all listings for that provider.
type RedisSlotCache struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSlotCache(client *redis.Client) *RedisSlotCache {
	return &RedisSlotCache{client: client}
}

func slotKey(key string) string       { return "slots:" + key }
func indexKey(provider string) string { return "slots_index:" + provider }

// providerOfKey extracts the provider segment from a cache key.
func providerOfKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

func (r *RedisSlotCache) GetSlots(ctx context.Context, key string) ([]models.Slot, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, slotKey(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get slots from redis: %w", err)
	}

	var slots []models.Slot
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached slots: %w", err)
	}
	return slots, true, nil
}

func (r *RedisSlotCache) SetSlots(ctx context.Context, key string, slots []models.Slot, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}

	provider := providerOfKey(key)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, slotKey(key), data, ttl)
	pipe.SAdd(ctx, indexKey(provider), slotKey(key))
	pipe.Expire(ctx, indexKey(provider), ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set slots in redis: %w", err)
	}
	return nil
}

func (r *RedisSlotCache) InvalidateProvider(ctx context.Context, providerID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	keys, err := r.client.SMembers(ctx, indexKey(providerID)).Result()
	if err != nil {
		return fmt.Errorf("list cached slot keys: %w", err)
	}
	keys = append(keys, indexKey(providerID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate provider slots: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
