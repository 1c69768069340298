package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCancelFlags(t *testing.T) *RedisCancelFlags {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCancelFlags(client)
}

func TestRedisCancelFlags(t *testing.T) {
	flags := newTestCancelFlags(t)
	ctx := context.Background()
	jobID := uuid.New()

	set, err := flags.IsSet(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, flags.Set(ctx, jobID))

	set, err = flags.IsSet(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, set)

	// The flag is scoped to one job.
	other, err := flags.IsSet(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, other)

	require.NoError(t, flags.Clear(ctx, jobID))

	set, err = flags.IsSet(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, set)
}
