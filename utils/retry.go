package utils

import (
	"context"
	"time"

	"github.com/fariaslabs/sgfsync/errs"
)

// RetryOnBackoff runs f up to attempts times, doubling the sleep between
// tries. Only transient errors are retried; anything else (auth rejection,
// malformed payload) fails fast. A cancelled context stops the loop.
func RetryOnBackoff(ctx context.Context, attempts int, sleep time.Duration, f func() error) (err error) {
	for cur := 0; cur < attempts; cur++ {
		if err = f(); err == nil {
			return nil
		}
		if !errs.IsTransient(err) {
			break
		}
		if cur == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
			sleep = sleep * 2
		}
	}

	return err
}
