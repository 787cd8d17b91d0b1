package persistence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts uint) persistence.LockPolicy {
	return persistence.LockPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxAttempts:     attempts,
	}
}

func TestAcquireLock_RetriesUntilFree(t *testing.T) {
	t.Parallel()

	calls := 0

	token, err := persistence.AcquireLock(t.Context(), fastPolicy(10), func() (string, error) {
		calls++
		if calls < 3 {
			return "", persistence.ErrLockHeld
		}

		return "token", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "token", token)
	assert.Equal(t, 3, calls)
}

func TestAcquireLock_Exhausted(t *testing.T) {
	t.Parallel()

	calls := 0

	_, err := persistence.AcquireLock(t.Context(), fastPolicy(4), func() (struct{}, error) {
		calls++

		return struct{}{}, persistence.ErrLockHeld
	})

	require.ErrorIs(t, err, persistence.ErrInstanceLocked)
	assert.Equal(t, 4, calls)
}

func TestAcquireLock_PermanentError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	calls := 0

	_, err := persistence.AcquireLock(t.Context(), fastPolicy(10), func() (int, error) {
		calls++

		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
