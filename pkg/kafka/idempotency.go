package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// IdempotencyStore is the interface for checking and storing processed event
// IDs. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	// Contains returns true if the event ID has already been processed.
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add marks an event ID as processed after successful handling.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore suitable for
// development and single-instance deployments. Entries expire after the
// configured TTL to bound memory usage.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	ttl     time.Duration
}

// NewMemoryIdempotencyStore creates an in-memory store with the given TTL.
// Expired entries are lazily cleaned up on access.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// Contains checks if the event ID exists and is not expired.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	ts, exists := s.entries[eventID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	if time.Since(ts) > s.ttl {
		s.mu.Lock()
		delete(s.entries, eventID)
		s.mu.Unlock()
		return false, nil
	}

	return true, nil
}

// Add marks the event ID as processed with the current timestamp.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.entries[eventID] = time.Now()
	s.mu.Unlock()
	return nil
}

// RedisIdempotencyStore is a Redis-backed IdempotencyStore that survives
// restarts and is shared across instances. Keys carry a TTL so the set stays
// bounded.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed store. Keys are namespaced
// with the given prefix.
func NewRedisIdempotencyStore(client *redis.Client, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return s.prefix + ":" + eventID
}

// Contains checks whether the event ID has been recorded.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	err := s.client.Get(ctx, s.key(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return true, nil
}

// Add records the event ID with the configured TTL.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.key(eventID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency record: %w", err)
	}
	return nil
}

// IdempotentHandler wraps a Handler with deduplication logic. If the event's
// EventID has already been processed, the message is skipped and nil returned.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			// No event ID, cannot deduplicate.
			return inner(ctx, event)
		}

		exists, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.Warn("idempotency store lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			// On store failure, process the message rather than risk data loss.
			return inner(ctx, event)
		}

		if exists {
			logger.Debug("skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		// Mark as processed only after successful handling.
		if addErr := store.Add(ctx, event.EventID); addErr != nil {
			logger.Warn("failed to record event ID in idempotency store",
				slog.String("event_id", event.EventID),
				slog.String("error", addErr.Error()),
			)
		}

		return nil
	}
}
