package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/gastromap/location-enricher/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstThenBlocks(t *testing.T) {
	l := ratelimit.NewWithBurst("places", 1, 2)
	assert.Equal(t, "places", l.Name())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := ratelimit.NewWithBurst("places", 0.1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for places")
}

func TestNilLimiterNeverBlocks(t *testing.T) {
	var l *ratelimit.Limiter
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.Allow())
}
