// Package dedup implements the Redis delivery-state store: the TTL-bound
// sent markers and the dead-letter lists drained by the repeater.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store tracks which (subscriber, notification) pairs have been delivered
// inside the dedup window, and holds failed payloads for retry.
type Store interface {
	MarkSent(ctx context.Context, subscriberID, notificationID string) error
	WasSent(ctx context.Context, subscriberID, notificationID string) (bool, error)
	DLQPush(ctx context.Context, queue string, payload []byte) error
	DLQPop(ctx context.Context, queue string) ([]byte, error)
}

// RedisStore implements Store on a single Redis database.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects, pings, and returns the store. ttl bounds the
// dedup window for sent markers.
func NewRedisStore(addr, password string, db int, ttl time.Duration, log *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established")
	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreFromClient wraps an existing client; tests use it with
// miniredis.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sentKey(subscriberID, notificationID string) string {
	return subscriberID + ":" + notificationID
}

// MarkSent records a delivery. The key expires after the dedup window so
// repeated notification ids become deliverable again.
func (s *RedisStore) MarkSent(ctx context.Context, subscriberID, notificationID string) error {
	err := s.client.SetEx(ctx, sentKey(subscriberID, notificationID), 1, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return nil
}

// WasSent reports whether the pair was delivered inside the window.
func (s *RedisStore) WasSent(ctx context.Context, subscriberID, notificationID string) (bool, error) {
	n, err := s.client.Exists(ctx, sentKey(subscriberID, notificationID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check sent marker: %w", err)
	}
	return n > 0, nil
}

// DLQPush appends a failed payload to the queue's retry list.
func (s *RedisStore) DLQPush(ctx context.Context, queue string, payload []byte) error {
	if err := s.client.RPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to dead letter list: %w", err)
	}
	return nil
}

// DLQPop removes and returns the oldest payload, or nil when the list is
// empty.
func (s *RedisStore) DLQPop(ctx context.Context, queue string) ([]byte, error) {
	payload, err := s.client.LPop(ctx, queue).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from dead letter list: %w", err)
	}
	return payload, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
