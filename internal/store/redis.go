package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/chatid-bot/internal/quota"
)

// DefaultRedisKey is the key holding the quota document.
const DefaultRedisKey = "quota:limits"

// RedisStore is a Redis implementation of quota.Store. The whole document
// lives under a single string key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis-backed quota store.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisStore{
		client: client,
		key:    key,
	}
}

func (r *RedisStore) Load(ctx context.Context) (quota.Document, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quota.Document{}, nil
		}

		return nil, err
	}

	doc := quota.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode quota document: %w", err)
	}

	return doc, nil
}

func (r *RedisStore) Save(ctx context.Context, doc quota.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode quota document: %w", err)
	}

	return r.client.Set(ctx, r.key, payload, 0).Err()
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
