package poller

import (
	"context"
	"time"
)

// Waiter pauses the poll loop between status queries.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// SleepWaiter blocks the calling goroutine for the whole duration. The
// context is not consulted while sleeping.
type SleepWaiter struct{}

// Wait implements Waiter.
func (SleepWaiter) Wait(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

// ContextWaiter suspends until the duration passes or ctx is done, in which
// case it returns ctx.Err().
type ContextWaiter struct{}

// Wait implements Waiter.
func (ContextWaiter) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
