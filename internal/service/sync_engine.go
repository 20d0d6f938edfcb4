package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"feedsync/internal/cache"
	"feedsync/internal/metrics"
	"feedsync/internal/models"
	"feedsync/internal/validation"
	feedbacktypes "feedsync/pkg/feedback/types"
)

// ScopeTracker holds the tenant scope the session is currently working in.
// The empty scope is the platform-wide administrative view, which accepts
// traffic from every tenant.
type ScopeTracker struct {
	mu    sync.RWMutex
	scope string
}

// Set records the active scope.
func (st *ScopeTracker) Set(scope string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.scope = scope
}

// Get returns the active scope.
func (st *ScopeTracker) Get() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.scope
}

// Admits reports whether an inbound entity of the given tenant scope may
// reach the session's buckets. Room exclusivity: when joined to one
// tenant's room, other tenants' traffic is rejected outright.
func (st *ScopeTracker) Admits(tenantScope string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.scope == "" || st.scope == tenantScope
}

// Notifier is the dispatcher surface the engine needs.
type Notifier interface {
	Dispatch(msg models.Message, kind models.EventKind)
}

// SyncEngine consumes the channel mailbox and refresh results and drives
// them through one reconciliation path. It is the only component besides
// the mutation coordinator permitted to write the cache.
type SyncEngine struct {
	events     <-chan models.Event
	reconciler *cache.Reconciler
	store      *cache.Store
	scope      *ScopeTracker
	notifier   Notifier
	logger     *logrus.Logger

	// onReconnect fires when the channel comes (back) up, so the
	// refresher can sweep anything missed while disconnected.
	onReconnect func(reason string)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSyncEngine creates a sync engine over the channel mailbox.
func NewSyncEngine(events <-chan models.Event, store *cache.Store, reconciler *cache.Reconciler, scope *ScopeTracker, notifier Notifier, logger *logrus.Logger) *SyncEngine {
	if logger == nil {
		logger = logrus.New()
	}
	return &SyncEngine{
		events:     events,
		reconciler: reconciler,
		store:      store,
		scope:      scope,
		notifier:   notifier,
		logger:     logger,
	}
}

// OnReconnect registers a callback fired on every channel (re)connection.
func (se *SyncEngine) OnReconnect(fn func(reason string)) {
	se.onReconnect = fn
}

// Start begins consuming the mailbox.
func (se *SyncEngine) Start(ctx context.Context) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.running {
		return fmt.Errorf("sync engine is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	se.cancel = cancel
	se.running = true

	se.wg.Add(1)
	go se.loop(runCtx)

	se.logger.Info("Sync engine started")
	return nil
}

// Stop gracefully stops the engine.
func (se *SyncEngine) Stop() {
	se.mu.Lock()
	defer se.mu.Unlock()

	if !se.running {
		return
	}
	se.cancel()
	se.wg.Wait()
	se.running = false
	se.logger.Info("Sync engine stopped")
}

func (se *SyncEngine) loop(ctx context.Context) {
	defer se.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-se.events:
			if !ok {
				return
			}
			se.handle(ev)
		}
	}
}

// handle processes one mailbox event. Reconciliation never fails; an
// unreconcilable event is dropped with nothing left inconsistent.
func (se *SyncEngine) handle(ev models.Event) {
	switch ev.Kind {
	case models.EventEntityNew, models.EventEntityUpdated:
		se.handleEntity(ev)
	case models.EventEntityDeleted:
		se.handleDelete(ev)
	case models.EventRoomJoined:
		se.logger.WithField("room", ev.Room).Info("Room joined")
	case models.EventRoomJoinError:
		se.logger.WithFields(logrus.Fields{
			"room":  ev.Room,
			"error": ev.Err,
		}).Warn("Room join failed, scope degraded to refresh-only")
	case models.EventConnected:
		se.logger.Info("Channel connected")
		if se.onReconnect != nil {
			se.onReconnect("reconnect")
		}
	case models.EventDisconnected:
		se.logger.Info("Channel disconnected")
	case models.EventDegraded:
		se.logger.WithField("error", ev.Err).Warn("Channel degraded, relying on triggered refreshes")
	default:
		se.logger.WithField("kind", ev.Kind).Debug("Ignored unknown event kind")
	}
}

func (se *SyncEngine) handleEntity(ev models.Event) {
	if ev.Message == nil {
		return
	}
	msg := *ev.Message

	if err := validation.ValidateMessage(&msg); err != nil {
		se.logger.WithError(err).Debug("Dropped malformed inbound entity")
		metrics.IncrementCounter("sync_dropped_invalid", nil, "Inbound entities dropped by validation")
		return
	}
	if !se.scope.Admits(msg.TenantScope) {
		se.logger.WithFields(logrus.Fields{
			"message_id":   SanitizeMessageID(msg.ID),
			"tenant_scope": msg.TenantScope,
		}).Debug("Dropped inbound entity outside the joined room")
		metrics.IncrementCounter("sync_dropped_foreign_scope", nil, "Inbound entities rejected by room exclusivity")
		return
	}

	outcome := se.reconciler.ReconcileScope(msg)
	if outcome == cache.OutcomeInserted && ev.Kind == models.EventEntityNew {
		se.notifier.Dispatch(msg, ev.Kind)
	}
}

func (se *SyncEngine) handleDelete(ev models.Event) {
	if ev.Delete == nil {
		return
	}
	if !se.scope.Admits(ev.Delete.TenantScope) {
		return
	}
	removed := se.reconciler.Remove(ev.Delete.ID)
	se.logger.WithFields(logrus.Fields{
		"message_id": SanitizeMessageID(ev.Delete.ID),
		"buckets":    removed,
	}).Debug("Entity removed from cache on delete event")
}

// ApplyRefresh folds an authoritative fetch result into the cache through
// the same reconciliation path as push events. The target bucket is
// created empty when first seen, so an initial load and an incremental
// refresh behave identically.
func (se *SyncEngine) ApplyRefresh(opts feedbacktypes.FetchOptions, result *feedbacktypes.FetchResult) {
	if result == nil {
		return
	}

	var key cache.BucketKey
	if opts.Paginated() {
		key = cache.PageKey(opts.TenantScope, opts.Page, opts.Limit)
	} else {
		key = cache.ListKey(opts.TenantScope)
	}

	if _, ok := se.store.Entities(key); !ok {
		if result.Pagination != nil {
			se.store.SetEnvelope(key, nil, *result.Pagination)
		} else {
			se.store.SetList(key, nil)
		}
	} else if result.Pagination != nil {
		// Counts move with the backing data; stale totals would linger
		// forever otherwise since reconcile never touches metadata.
		se.store.SetPagination(key, *result.Pagination)
	}

	// The service returns newest first; head insertion of absent ids
	// must walk the slice backwards to preserve that order.
	for i := len(result.Messages) - 1; i >= 0; i-- {
		msg := result.Messages[i]
		if err := validation.ValidateMessage(&msg); err != nil {
			se.logger.WithError(err).Debug("Dropped malformed entity in refresh result")
			continue
		}
		se.reconciler.Reconcile(key, msg)
		se.reconciler.Reconcile(cache.PointKey(msg.ID), msg)
	}
	metrics.IncrementCounter("refresh_applied", map[string]string{"scope": opts.TenantScope}, "Authoritative refresh sweeps folded into the cache")
}
