package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

const (
	storeRetryAttempts  = 3
	storeRetryBaseDelay = 50 * time.Millisecond
)

// withStoreRetry runs fn against the store, retrying transient failures with
// doubling backoff. Domain misses (room not found / already exists) are
// terminal and returned as-is; exhausted retries surface as a
// storage_unavailable domain error.
func withStoreRetry(ctx context.Context, log *zerolog.Logger, timeout time.Duration, op string, fn func(context.Context) error) error {
	delay := storeRetryBaseDelay
	var err error
	for attempt := 1; attempt <= storeRetryAttempts; attempt++ {
		err = func() error {
			opCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return fn(opCtx)
		}()
		if err == nil || errors.Is(err, store.ErrRoomNotFound) || errors.Is(err, store.ErrRoomExists) {
			return err
		}
		if attempt == storeRetryAttempts {
			break
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("store call failed, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	log.Error().Err(err).Str("op", op).Msg("store call failed after retries")
	return storageUnavailable(op, err)
}
