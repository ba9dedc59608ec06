package services

import (
	"context"
	"time"
)

// EventPublisher is satisfied by *queue.KafkaProducer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// KeyStore is the slice of *cache.RedisClient used for throttling and
// single-use token claims.
type KeyStore interface {
	// SetNX stores key only if it is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// IncrWithExpire increments key, starting its expiry window on the first
	// increment, and returns the new value.
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Clock returns the current time. Tests substitute a fixed sequence.
type Clock func() time.Time

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, interface{}) error { return nil }
