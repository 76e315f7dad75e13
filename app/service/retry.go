package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/provider"
)

// RetryPolicy decides whether a failed delivery is attempted again.
type RetryPolicy interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

// NoRetry runs the operation exactly once.
type NoRetry struct{}

func (NoRetry) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return op(ctx)
}

// BackoffRetry retries transport failures with exponential backoff.
// Credential and provider errors are returned immediately.
type BackoffRetry struct {
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          logrus.FieldLogger
}

// NewBackoffRetry builds a retry policy with at most maxTries attempts.
func NewBackoffRetry(maxTries uint, initialInterval, maxInterval time.Duration, logger logrus.FieldLogger) *BackoffRetry {
	return &BackoffRetry{
		maxTries:        maxTries,
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		logger:          logger,
	}
}

func (r *BackoffRetry) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if err != nil && provider.KindOf(err) != provider.KindTransport {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.WithError(err).WithField("retry_in", next).Warn("delivery failed, retrying")
		}),
	)
	return err
}

// NewRetryPolicy returns NoRetry for maxTries <= 1.
func NewRetryPolicy(maxTries int, initialInterval, maxInterval time.Duration, logger logrus.FieldLogger) RetryPolicy {
	if maxTries <= 1 {
		return NoRetry{}
	}
	return NewBackoffRetry(uint(maxTries), initialInterval, maxInterval, logger)
}
