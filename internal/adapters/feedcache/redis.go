package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
)

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisBackend shares cached bar windows across processes.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "tradesim"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBackend{client: client, prefix: cfg.Prefix}, nil
}

func (r *RedisBackend) wrapKey(key string) string {
	return r.prefix + ":bars:" + key
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]domain.Bar, error) {
	data, err := r.client.Get(ctx, r.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, err
	}
	var bars []domain.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("decode cached bars: %w", err)
	}
	return bars, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, bars []domain.Bar, ttl time.Duration) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.wrapKey(key), data, ttl).Err()
}

// Close closes the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
