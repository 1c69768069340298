package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// cancelFlagTTL keeps stale flags from accumulating if a worker dies before
// clearing them.
const cancelFlagTTL = 24 * time.Hour

// RedisCancelFlags stores cancellation flags in redis so the API process and
// the worker pool see the same flag regardless of which process handled the
// cancel request.
type RedisCancelFlags struct {
	client *redis.Client
}

func NewRedisCancelFlags(client *redis.Client) *RedisCancelFlags {
	return &RedisCancelFlags{client: client}
}

func cancelKey(jobID uuid.UUID) string {
	return fmt.Sprintf("upload:cancel:%s", jobID)
}

func (f *RedisCancelFlags) Set(ctx context.Context, jobID uuid.UUID) error {
	return f.client.Set(ctx, cancelKey(jobID), "1", cancelFlagTTL).Err()
}

func (f *RedisCancelFlags) IsSet(ctx context.Context, jobID uuid.UUID) (bool, error) {
	_, err := f.client.Get(ctx, cancelKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *RedisCancelFlags) Clear(ctx context.Context, jobID uuid.UUID) error {
	return f.client.Del(ctx, cancelKey(jobID)).Err()
}
