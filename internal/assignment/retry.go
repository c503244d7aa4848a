package assignment

import (
	"context"
	"time"

	"github.com/jonathan/gigmatch/internal/db"
)

// RetryPolicy bounds the retries of transient store failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy makes three attempts starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

// do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. Exhausted retries surface as TRANSIENT_STORE_ERROR;
// other errors are returned unchanged for the caller to classify.
func (r RetryPolicy) do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := r.BaseDelay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !db.IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return newError(KindTransient, op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
	return newError(KindTransient, op, err)
}
