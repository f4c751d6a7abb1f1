package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySeenAndMark(t *testing.T) {
	d := NewInMemory(time.Hour)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "dlv_1")
	require.NoError(t, err)
	assert.False(t, seen, "first sighting")

	// Checking alone does not mark; only Mark does.
	seen, err = d.Seen(ctx, "dlv_1")
	require.NoError(t, err)
	assert.False(t, seen, "unmarked delivery stays unseen")

	require.NoError(t, d.Mark(ctx, "dlv_1"))

	seen, err = d.Seen(ctx, "dlv_1")
	require.NoError(t, err)
	assert.True(t, seen, "redelivery after mark")

	seen, err = d.Seen(ctx, "dlv_2")
	require.NoError(t, err)
	assert.False(t, seen, "distinct delivery")
}

func TestInMemoryWindowExpiry(t *testing.T) {
	d := NewInMemory(time.Hour)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	require.NoError(t, d.Mark(context.Background(), "dlv_1"))

	now = now.Add(2 * time.Hour)
	seen, err := d.Seen(context.Background(), "dlv_1")
	require.NoError(t, err)
	assert.False(t, seen, "entry expired with the window")
}

func TestEmptyDeliveryIDNeverDedupes(t *testing.T) {
	d := NewInMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, d.Mark(ctx, ""))
	seen, err := d.Seen(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen)
}
