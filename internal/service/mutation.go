package service

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"feedsync/internal/cache"
	"feedsync/internal/errors"
	"feedsync/internal/metrics"
	"feedsync/internal/models"
	"feedsync/internal/tracing"
	feedbacktypes "feedsync/pkg/feedback/types"
)

// StatusPatch is the locally requested change to an entity: a status
// transition and optionally a new tenant response text.
type StatusPatch struct {
	Status   models.Status
	Response *string
}

// MutationResult reports how one mutation settled. Canonical is set on
// commit; Err on rollback. A superseded mutation produces no result, the
// superseding one does.
type MutationResult struct {
	ID        string
	Token     string
	Canonical *models.Message
	Err       error
}

// inflight is the coordinator's record of one unsettled mutation. The
// baselines are deep copies of every bucket holding the id, captured
// before the first projection was written; rollback restores them
// verbatim. A superseding Begin replaces the token but keeps the original
// baselines so the true pre-mutation state is never lost.
type inflight struct {
	token     string
	baselines map[cache.BucketKey][]models.Message
}

// MutationCoordinator runs the optimistic mutation lifecycle: tentative
// projection into every bucket holding the id, grace window opened, service
// call with a hard timeout, then atomic commit or baseline rollback.
type MutationCoordinator struct {
	store   *cache.Store
	client  feedbacktypes.Client
	grace   *GraceTable
	logger  *logrus.Logger
	timeout time.Duration

	mu       sync.Mutex
	active   map[string]*inflight
	results  chan MutationResult
	settleWg sync.WaitGroup
}

// NewMutationCoordinator creates a mutation coordinator.
func NewMutationCoordinator(store *cache.Store, client feedbacktypes.Client, grace *GraceTable, timeout time.Duration, logger *logrus.Logger) *MutationCoordinator {
	if logger == nil {
		logger = logrus.New()
	}
	return &MutationCoordinator{
		store:   store,
		client:  client,
		grace:   grace,
		logger:  logger,
		timeout: timeout,
		active:  make(map[string]*inflight),
		results: make(chan MutationResult, 16),
	}
}

// Results returns the stream of settled mutation outcomes. UI callers
// consume it to show error toasts for rolled-back mutations.
func (mc *MutationCoordinator) Results() <-chan MutationResult {
	return mc.results
}

// Begin starts an optimistic mutation and returns its tentative token. The
// merged projection is visible in every cache bucket holding the id before
// Begin returns; the service call settles asynchronously through Results.
//
// A locked entity is refused before any network call. A transition to the
// entity's current state is an accepted no-op: the empty token is returned
// and nothing is written or sent.
func (mc *MutationCoordinator) Begin(ctx context.Context, id string, patch StatusPatch) (string, error) {
	local, ok := mc.store.Find(id)
	if !ok {
		return "", errors.NewNotFoundError("message", id)
	}
	if local.IsLocked() {
		mc.logger.WithField("message_id", SanitizeMessageID(id)).Debug("Mutation refused, entity locked by privileged override")
		return "", errors.NewLockedEntityError(id)
	}
	if patch.Status == local.Status && (patch.Response == nil || *patch.Response == local.Response) {
		return "", nil
	}
	if patch.Status != local.Status && !local.Status.CanTransitionTo(patch.Status) {
		return "", errors.NewValidationError("status", string(patch.Status), "transition not permitted from "+string(local.Status))
	}

	token := models.TentativePrefix + ulid.Make().String()

	mc.mu.Lock()
	entry, superseding := mc.active[id]
	if superseding {
		// Keep the original baselines: rollback must restore the state
		// before the first mutation, not the intermediate projection.
		entry.token = token
	} else {
		entry = &inflight{
			token:     token,
			baselines: mc.store.SnapshotContaining(id),
		}
		mc.active[id] = entry
	}
	mc.mu.Unlock()

	projection := local.Clone()
	projection.Status = patch.Status
	if patch.Response != nil {
		projection.Response = *patch.Response
	}
	projection.UpdatedAt = time.Now()
	projection.TentativeToken = token

	// Grace first: a push event arriving between the two calls must
	// already see the id protected, or it could clobber the projection.
	mc.grace.Touch(id)
	mc.project(id, projection)

	metrics.IncrementCounter("mutation_started", map[string]string{"status": string(patch.Status)}, "Optimistic mutations begun")
	mc.logger.WithFields(logrus.Fields{
		"message_id":  SanitizeMessageID(id),
		"status":      patch.Status,
		"superseding": superseding,
	}).Debug("Optimistic projection written")

	mc.settleWg.Add(1)
	go mc.settle(ctx, id, token, patch)
	return token, nil
}

// Wait blocks until every in-flight mutation has settled. Used on shutdown
// and in tests.
func (mc *MutationCoordinator) Wait() {
	mc.settleWg.Wait()
}

// settle performs the service call and resolves the mutation. The timeout
// is a hard deadline; expiry triggers rollback exactly like a rejection.
func (mc *MutationCoordinator) settle(ctx context.Context, id, token string, patch StatusPatch) {
	defer mc.settleWg.Done()

	callCtx, cancel := context.WithTimeout(ctx, mc.timeout)
	defer cancel()

	callCtx, span := tracing.StartSpan(callCtx, "mutation.update_status")
	defer span.End()

	canonical, err := mc.client.UpdateStatus(callCtx, id, patch.Status, patch.Response)

	mc.mu.Lock()
	entry, ok := mc.active[id]
	if !ok || entry.token != token {
		// Superseded while in flight. The newer mutation owns the
		// projection and the baselines now; this result is obsolete.
		mc.mu.Unlock()
		mc.logger.WithField("message_id", SanitizeMessageID(id)).Debug("Discarded result of superseded mutation")
		return
	}
	delete(mc.active, id)
	baselines := entry.baselines
	mc.mu.Unlock()

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = errors.NewMutationTimeoutError(id, err)
		}
		tracing.RecordError(callCtx, err)
		mc.rollback(id, baselines)
		metrics.IncrementCounter("mutation_rolled_back", nil, "Mutations rolled back to their pre-mutation baseline")
		mc.logger.WithError(err).WithField("message_id", SanitizeMessageID(id)).Warn("Mutation failed, baseline restored")
		mc.report(MutationResult{ID: id, Token: token, Err: err})
		return
	}

	mc.commit(id, canonical)
	metrics.IncrementCounter("mutation_committed", nil, "Mutations committed with the canonical entity")
	mc.report(MutationResult{ID: id, Token: token, Canonical: canonical})
}

// project writes the tentative entity into every bucket currently holding
// the id, in place, preserving position.
func (mc *MutationCoordinator) project(id string, projection models.Message) {
	for _, key := range mc.store.KeysContaining(id) {
		mc.store.Mutate(key, func(entities []models.Message) ([]models.Message, bool) {
			for i := range entities {
				if entities[i].ID == id {
					entities[i] = projection.Clone()
					return entities, true
				}
			}
			return entities, false
		})
	}
}

// commit swaps the projection for the server's canonical entity everywhere.
// The grace window stays open: a late push echoing pre-mutation state can
// still race the commit and must keep losing.
func (mc *MutationCoordinator) commit(id string, canonical *models.Message) {
	mc.project(id, *canonical)
}

// rollback restores the pre-mutation snapshot of every touched bucket and
// closes the grace window, so fresh server state flows in again
// immediately.
func (mc *MutationCoordinator) rollback(id string, baselines map[cache.BucketKey][]models.Message) {
	for key, snapshot := range baselines {
		mc.store.Restore(key, snapshot)
	}
	mc.grace.Clear(id)
}

func (mc *MutationCoordinator) report(result MutationResult) {
	select {
	case mc.results <- result:
	default:
		mc.logger.WithField("message_id", SanitizeMessageID(result.ID)).Warn("Mutation result dropped, consumer not keeping up")
	}
}
