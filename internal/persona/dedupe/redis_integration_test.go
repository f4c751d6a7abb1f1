//go:build integration

package dedupe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/persona/dedupe"
	"bazaar/pkg/testutil/containers"
)

func TestRedisDeduper(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	d := dedupe.NewRedis(rc.Client, time.Minute)

	seen, err := d.Seen(ctx, "dlv_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "dlv_1"))

	seen, err = d.Seen(ctx, "dlv_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "dlv_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduperShortWindow(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	d := dedupe.NewRedis(rc.Client, time.Second)

	require.NoError(t, d.Mark(ctx, "dlv_ttl"))

	seen, err := d.Seen(ctx, "dlv_ttl")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Eventually(t, func() bool {
		seen, err := d.Seen(ctx, "dlv_ttl")
		return err == nil && !seen
	}, 5*time.Second, 250*time.Millisecond, "key expires with the window")
}
