package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is retried until it returns nil.
type Operation func(ctx context.Context) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, waiting interval between attempts. It only
// gives up when ctx is done or op returns a Permanent error.
func Do(ctx context.Context, interval time.Duration, op Operation) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled before attempt %d: %w", attempt, err)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
}
