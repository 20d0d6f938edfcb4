package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures uint32, resetTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cb := NewWithLogger("feedback-api", maxFailures, resetTimeout, logger)
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return current }
	return cb, &current
}

func failing(ctx context.Context) error { return fmt.Errorf("backend down") }
func succeeding(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, failing)
		require.Error(t, err)
		assert.False(t, IsCircuitBreakerError(err))
	}

	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(ctx, succeeding)
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestCircuitBreaker_ProbesAfterResetTimeout(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.GetState())

	*now = now.Add(2 * time.Minute)

	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	*now = now.Add(2 * time.Minute)

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))
	require.NoError(t, cb.Execute(ctx, succeeding))
	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb, _ := newTestBreaker(5, time.Minute)
	ctx := context.Background()

	require.NoError(t, cb.Execute(ctx, succeeding))
	require.Error(t, cb.Execute(ctx, failing))

	stats := cb.GetStats()
	assert.Equal(t, "feedback-api", stats.Name)
	assert.Equal(t, uint32(2), stats.Requests)
	assert.Equal(t, uint32(1), stats.Successes)
	assert.Equal(t, uint32(1), stats.Failures)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
