package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"feedsync/internal/constants"
	"feedsync/internal/metrics"
	"feedsync/internal/models"
	"feedsync/internal/tracing"
	"feedsync/pkg/circuitbreaker"
	feedbacktypes "feedsync/pkg/feedback/types"
)

// RefreshApplier receives fetch results; the sync engine implements it.
type RefreshApplier interface {
	ApplyRefresh(opts feedbacktypes.FetchOptions, result *feedbacktypes.FetchResult)
}

// Refresher periodically refetches the active scope from the authoritative
// service and feeds the result through the reconciliation path. External
// triggers (component mount, window focus, channel reconnect) force an
// immediate sweep; they are the fallback when the push channel is degraded.
type Refresher struct {
	client  feedbacktypes.Client
	applier RefreshApplier
	breaker *circuitbreaker.CircuitBreaker
	scope   *ScopeTracker
	config  models.SyncConfig
	logger  *logrus.Logger

	triggers chan string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.RWMutex
}

// NewRefresher creates a refresher.
func NewRefresher(client feedbacktypes.Client, applier RefreshApplier, breaker *circuitbreaker.CircuitBreaker, scope *ScopeTracker, config models.SyncConfig, logger *logrus.Logger) *Refresher {
	if logger == nil {
		logger = logrus.New()
	}
	if config.SweepTimeoutSec == 0 {
		config.SweepTimeoutSec = constants.DefaultSweepTimeoutSec
	}
	return &Refresher{
		client:   client,
		applier:  applier,
		breaker:  breaker,
		scope:    scope,
		config:   config,
		logger:   logger,
		triggers: make(chan string, 8),
	}
}

// Start begins the background refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("refresher is already running")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	r.wg.Add(1)
	go r.loop()

	r.logger.WithFields(logrus.Fields{
		"interval": r.config.RefreshIntervalSec,
	}).Info("Refresher started")
	return nil
}

// Stop gracefully stops the refresh loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	r.logger.Info("Refresher stopped")
}

// IsRunning returns whether the refresher is currently active.
func (r *Refresher) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Trigger requests an immediate refresh sweep. Never blocks; when a sweep
// is already queued the trigger coalesces into it.
func (r *Refresher) Trigger(reason string) {
	select {
	case r.triggers <- reason:
	default:
	}
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Duration(r.config.RefreshIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweep("interval")
		case reason := <-r.triggers:
			r.sweep(reason)
		}
	}
}

// sweep fetches the active scope behind the circuit breaker and folds the
// result into the cache. An open breaker skips the sweep quietly; the next
// tick or trigger probes again.
func (r *Refresher) sweep(reason string) {
	ctx, cancel := context.WithTimeout(r.ctx, time.Duration(r.config.SweepTimeoutSec)*time.Second)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "refresher.sweep")
	defer span.End()

	opts := feedbacktypes.FetchOptions{TenantScope: r.scope.Get()}

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		result, err := r.client.FetchAll(ctx, opts)
		if err != nil {
			return err
		}
		r.applier.ApplyRefresh(opts, result)
		return nil
	})
	if err != nil {
		if circuitbreaker.IsCircuitBreakerError(err) {
			r.logger.WithField("reason", reason).Debug("Refresh sweep skipped, circuit breaker open")
			return
		}
		tracing.RecordError(ctx, err)
		metrics.IncrementCounter("refresh_failed", map[string]string{"reason": reason}, "Refresh sweeps that failed against the feedback service")
		r.logger.WithError(err).WithField("reason", reason).Warn("Refresh sweep failed")
		return
	}

	r.logger.WithFields(logrus.Fields{
		"reason": reason,
		"scope":  opts.TenantScope,
	}).Debug("Refresh sweep applied")
}
