package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/models"
	"feedsync/pkg/circuitbreaker"
	feedbacktypes "feedsync/pkg/feedback/types"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []feedbacktypes.FetchOptions
}

func (a *recordingApplier) ApplyRefresh(opts feedbacktypes.FetchOptions, result *feedbacktypes.FetchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, opts)
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func newRefresherFixture(client *mockFeedbackClient) (*Refresher, *recordingApplier, *ScopeTracker) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	applier := &recordingApplier{}
	scope := &ScopeTracker{}
	breaker := circuitbreaker.NewWithLogger("feedback-api", 3, time.Minute, logger)
	cfg := models.SyncConfig{RefreshIntervalSec: 3600, SweepTimeoutSec: 30, PageSize: 25}
	return NewRefresher(client, applier, breaker, scope, cfg, logger), applier, scope
}

func TestRefresher_TriggerRunsSweep(t *testing.T) {
	client := &mockFeedbackClient{
		fetchAllFn: func(ctx context.Context, opts feedbacktypes.FetchOptions) (*feedbacktypes.FetchResult, error) {
			return &feedbacktypes.FetchResult{}, nil
		},
	}
	r, applier, scope := newRefresherFixture(client)
	scope.Set("ACME0001")

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()
	assert.True(t, r.IsRunning())

	r.Trigger("mount")

	require.True(t, waitFor(time.Second, func() bool { return applier.count() == 1 }))
	applier.mu.Lock()
	opts := applier.applied[0]
	applier.mu.Unlock()
	assert.Equal(t, "ACME0001", opts.TenantScope)
}

func TestRefresher_FetchFailureNotApplied(t *testing.T) {
	client := &mockFeedbackClient{
		fetchAllFn: func(ctx context.Context, opts feedbacktypes.FetchOptions) (*feedbacktypes.FetchResult, error) {
			return nil, assert.AnError
		},
	}
	r, applier, _ := newRefresherFixture(client)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	r.Trigger("focus")

	require.True(t, waitFor(time.Second, func() bool { return client.fetchAllCallCount() == 1 }))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, applier.count())
}

func TestRefresher_OpenBreakerSkipsSweep(t *testing.T) {
	client := &mockFeedbackClient{
		fetchAllFn: func(ctx context.Context, opts feedbacktypes.FetchOptions) (*feedbacktypes.FetchResult, error) {
			return nil, assert.AnError
		},
	}
	r, _, _ := newRefresherFixture(client)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	// Three failed sweeps open the breaker
	for i := 0; i < 3; i++ {
		r.Trigger("focus")
		want := i + 1
		require.True(t, waitFor(time.Second, func() bool { return client.fetchAllCallCount() == want }))
	}

	// The next trigger is refused without touching the backend
	r.Trigger("focus")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, client.fetchAllCallCount())
}

func TestRefresher_DoubleStartRejected(t *testing.T) {
	r, _, _ := newRefresherFixture(&mockFeedbackClient{})

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()
	assert.Error(t, r.Start(context.Background()))
}

func TestRefresher_StopIdempotent(t *testing.T) {
	r, _, _ := newRefresherFixture(&mockFeedbackClient{})

	require.NoError(t, r.Start(context.Background()))
	r.Stop()
	r.Stop()
	assert.False(t, r.IsRunning())
}
