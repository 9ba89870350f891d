package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func transientOnly(err error) bool {
	return errors.Is(err, errTransient)
}

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithJitter(0),
		WithRetryIf(transientOnly),
	}
	return New(append(base, opts...)...)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0

	err := fastRetrier(WithMaxAttempts(4)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	permanent := errors.New("validation failed")

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestDo_PermanentWrapperStopsEvenIfRetryable(t *testing.T) {
	attempts := 0

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(errTransient)
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, attempts, "a permanent marker beats the retry predicate")
}

func TestDo_NilRetryIfNeverRetries(t *testing.T) {
	attempts := 0
	r := New(WithInitialDelay(time.Millisecond), WithJitter(0))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	r := New(
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
		WithJitter(0),
		WithRetryIf(transientOnly),
	)

	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, attempts, "cancellation during backoff stops further attempts")
}

func TestOnRetryCallback(t *testing.T) {
	var calls int

	_ = fastRetrier(WithOnRetry(func(attempt int, err error, delay time.Duration) {
		calls++
	})).Do(context.Background(), func(ctx context.Context) error {
		return errTransient
	})

	assert.Equal(t, 2, calls, "one callback per retry, none after the final attempt")
}
