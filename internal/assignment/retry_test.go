package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("syntax error")
	calls := 0
	err := fastRetry().do(context.Background(), "op", func(context.Context) error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_GivesUpAsTransient(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "expire candidates", func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "57P01"}
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrTransient)

	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := r.do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryPolicy{}.do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, calls)
}
