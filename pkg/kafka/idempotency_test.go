package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	ok, err := store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "ev-1"))

	ok, err = store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, "webhook", time.Hour)

	ok, err := store.Contains(ctx, "evt_123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "evt_123"))

	ok, err = store.Contains(ctx, "evt_123")
	require.NoError(t, err)
	assert.True(t, ok)

	// Expired keys read as unprocessed again.
	mr.FastForward(2 * time.Hour)

	ok, err = store.Contains(ctx, "evt_123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}, testLogger())

	event, err := NewEvent("booking.created", "bk-1", "booking", "test", map[string]string{"k": "v"})
	require.NoError(t, err)

	require.NoError(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))

	assert.Equal(t, 1, calls, "duplicate delivery must be skipped")
}

func TestIdempotentHandler_DoesNotRecordFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, testLogger())

	event, err := NewEvent("booking.created", "bk-1", "booking", "test", nil)
	require.NoError(t, err)

	require.Error(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))

	assert.Equal(t, 2, calls, "failed handling must not mark the event processed")
}
