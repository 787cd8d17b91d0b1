package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrLockHeld is returned by a lock attempt that lost to another holder; it is
// retried by AcquireLock.
var ErrLockHeld = errors.New("lock held by another owner")

// LockPolicy bounds how long a store waits for a contended instance lock.
type LockPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     uint
	// StaleAfter lets a store break a lock whose holder apparently crashed.
	StaleAfter time.Duration
}

func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		MaxAttempts:     60,
		StaleAfter:      2 * time.Minute,
	}
}

// AcquireLock calls try until it succeeds, fails with an error other than
// ErrLockHeld, or the attempts run out, in which case ErrInstanceLocked is returned.
func AcquireLock[T any](ctx context.Context, policy LockPolicy, try func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.Multiplier = 1.5

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	value, err := backoff.Retry(ctx, func() (T, error) {
		v, err := try()
		if err != nil && !errors.Is(err, ErrLockHeld) {
			return v, backoff.Permanent(err)
		}

		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts), backoff.WithMaxElapsedTime(0))
	if errors.Is(err, ErrLockHeld) {
		return value, ErrInstanceLocked
	}

	return value, err
}
