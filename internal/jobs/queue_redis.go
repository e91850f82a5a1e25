package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implémente DurableQueue avec SET EX pour les enregistrements
// et LPUSH/BRPOP pour les files. L'expiration est gérée par Redis.
type RedisQueue struct {
	rdb *redis.Client
}

// RedisOptions regroupe les paramètres de connexion
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisQueue crée le client et vérifie la connexion avec un PING
func NewRedisQueue(opts RedisOptions) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisQueue{rdb: rdb}, nil
}

// NewRedisQueueFromClient réutilise un client existant
func NewRedisQueueFromClient(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := q.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := q.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (q *RedisQueue) Push(ctx context.Context, queue string, value string) error {
	if err := q.rdb.LPush(ctx, queue, value).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", queue, err)
	}
	return nil
}

func (q *RedisQueue) BlockingPop(ctx context.Context, queues []string, timeout time.Duration) (string, string, error) {
	result, err := q.rdb.BRPop(ctx, timeout, queues...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrQueueEmpty
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to pop from queues: %w", err)
	}
	if len(result) != 2 {
		return "", "", fmt.Errorf("unexpected BRPOP reply length %d", len(result))
	}
	return result[0], result[1], nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
