package shard

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStores is returned when a router has nothing to route to.
var ErrNoStores = errors.New("shard: no stores configured")

// StoreFunc runs one query against the store at index store.
type StoreFunc func(ctx context.Context, store int) error

// Failover runs fn on the next store in rotation and, on error, on the
// following stores in order until one succeeds or every store has been tried
// once. The start store comes from the shared cursor; the rest of the sequence
// is local to this call, so no store is tried twice even when other calls
// advance the cursor in between.
//
// With k consecutive failures it tries min(k+1, n) stores. When all fail the
// last error is returned. A cancelled context stops the sequence.
func Failover(ctx context.Context, rr *RoundRobin, fn StoreFunc) error {
	n := rr.Size()
	if n == 0 {
		return ErrNoStores
	}

	start := rr.Next()
	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("failover stopped after %d attempts: %w", attempt, err)
			}
			return err
		}

		store := (start + attempt) % n
		err := fn(ctx, store)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("all %d stores failed: %w", n, lastErr)
}
