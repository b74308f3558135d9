package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewGuard(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestCheckAndMark(t *testing.T) {
	g, _ := testGuard(t)
	ctx := context.Background()

	seen, err := g.CheckAndMark(ctx, "uid1", "1392644629")
	require.NoError(t, err)
	assert.False(t, seen, "first submission is clean")

	seen, err = g.CheckAndMark(ctx, "uid1", "1392644629")
	require.NoError(t, err)
	assert.True(t, seen, "second submission inside the window is a duplicate")

	seen, err = g.CheckAndMark(ctx, "uid2", "1392644629")
	require.NoError(t, err)
	assert.False(t, seen, "different merchant, same transaction id")
}

func TestWindowExpiry(t *testing.T) {
	g, mr := testGuard(t)
	ctx := context.Background()

	_, err := g.CheckAndMark(ctx, "uid1", "42")
	require.NoError(t, err)

	mr.FastForward(24*time.Hour + time.Second)

	seen, err := g.CheckAndMark(ctx, "uid1", "42")
	require.NoError(t, err)
	assert.False(t, seen, "mark expires with the window")
}
