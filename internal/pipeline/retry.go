package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/model"
)

// retryer re-invokes agent calls that failed for retryable reasons. The
// attempt number is passed through to the call so agents can clarify their
// prompts on later attempts.
type retryer struct {
	extra   int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

func newRetryer(cfg model.RetryConfig, logger *zap.Logger) *retryer {
	return &retryer{
		extra:   cfg.ExtraAttempts,
		backoff: time.Duration(cfg.BackoffMillis) * time.Millisecond,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// do runs fn up to 1+extra times. Unrecognized failures are classified as
// collaborator errors; the last error is returned once attempts run out.
func (r *retryer) do(ctx context.Context, collaborator string, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.extra; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff); err != nil {
				return err
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		lastErr = classify(collaborator, err)
		if !retryable(lastErr) {
			return lastErr
		}
		r.logger.Warn("retryable failure",
			zap.String("collaborator", collaborator),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
