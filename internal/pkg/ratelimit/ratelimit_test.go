package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLocalLimiter_BlocksAfterBurst(t *testing.T) {
	l := NewLocalLimiter(2, time.Hour)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "student-1"))
	assert.True(t, l.Allow(ctx, "student-1"))
	assert.False(t, l.Allow(ctx, "student-1"))
	assert.True(t, l.Allow(ctx, "student-2"), "keys have separate buckets")
}

func TestLocalLimiter_EvictsIdleBuckets(t *testing.T) {
	l := NewLocalLimiter(2, 20*time.Millisecond)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "198.51.100.7"))
	assert.True(t, l.Allow(ctx, "student-1"))
	assert.Equal(t, 2, l.buckets.ItemCount())

	time.Sleep(50 * time.Millisecond)
	l.buckets.DeleteExpired()
	assert.Equal(t, 0, l.buckets.ItemCount())

	assert.True(t, l.Allow(ctx, "student-1"))
	assert.Equal(t, 1, l.buckets.ItemCount())
}

func TestLocalLimiter_DisabledWhenLimitZero(t *testing.T) {
	l := NewLocalLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(context.Background(), "k"))
	}
}

func TestRedisLimiter_NilClientAllows(t *testing.T) {
	l := NewRedisLimiter(nil, 1, time.Minute, zerolog.Nop())
	assert.True(t, l.Allow(context.Background(), "k"))
	assert.True(t, l.Allow(context.Background(), "k"))
}
