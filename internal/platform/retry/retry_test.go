package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryAll(error) Action { return Retry }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Second}

	val, err := Do(context.Background(), clock, policy, retryAll, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	clock := clockwork.NewRealClock()
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	attempts := 0
	val, err := Do(context.Background(), clock, policy, retryAll, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 5, InitialBackoff: time.Second}

	cause := errors.New("bad request")
	attempts := 0
	_, err := Do(context.Background(), clock, policy, func(error) Action { return Stop }, func() (int, error) {
		attempts++
		return 0, cause
	})

	var permanent *PermanentError
	require.ErrorAs(t, err, &permanent)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	clock := clockwork.NewRealClock()
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	attempts := 0
	_, err := Do(context.Background(), clock, policy, retryAll, func() (int, error) {
		attempts++
		return 0, errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	clock := clockwork.NewRealClock()
	policy := Policy{MaxAttempts: 10, InitialBackoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, clock, policy, retryAll, func() (int, error) {
		return 0, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
