package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs fn until it succeeds, fails with a non transient error or
// the attempt budget is spent. Only transient conflicts are retried.
func (s *BookingService) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitial
	b.MaxInterval = s.opts.RetryMax
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransientConflict) {
			if attempt < s.opts.MaxAttempts {
				s.Metrics.IncRetry(op)
				s.Logger.Debug("BOOKING", fmt.Sprintf("%s attempt %d hit a conflict, retrying: %v", op, attempt, err))
			}
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
