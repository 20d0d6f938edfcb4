package cache

import (
	"github.com/sirupsen/logrus"

	"feedsync/internal/metrics"
	"feedsync/internal/models"
)

// Outcome is the result of folding one inbound entity into one bucket.
type Outcome string

const (
	OutcomeInserted      Outcome = "inserted"
	OutcomeReplaced      Outcome = "replaced"
	OutcomeRejectedStale Outcome = "rejected-stale"
	// OutcomeSkipped covers buckets the inbound entity cannot apply to: a
	// point-lookup bucket for a different id, or a bucket that no longer
	// exists. Not an error.
	OutcomeSkipped Outcome = "skipped"
)

// StalenessJudge decides whether an inbound snapshot loses to local state.
type StalenessJudge interface {
	Stale(local, inbound models.Message) (bool, string)
}

// Reconciler folds inbound entities into cache buckets while preserving the
// dedup and ordering invariants. Push events and periodic refreshes both
// flow through Reconcile, so the two paths share one invariant set.
type Reconciler struct {
	store  *Store
	judge  StalenessJudge
	logger *logrus.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store *Store, judge StalenessJudge, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reconciler{
		store:  store,
		judge:  judge,
		logger: logger,
	}
}

// Reconcile merges one inbound entity into one bucket: insert at the head
// when the id is absent, replace in place when present and not stale,
// reject otherwise. Insertion is always accepted since there is nothing to
// compare against. Reconcile never fails; unusable input degrades to
// OutcomeSkipped or OutcomeRejectedStale with the bucket untouched.
func (r *Reconciler) Reconcile(key BucketKey, inbound models.Message) Outcome {
	// A point-lookup bucket is only ever replaced by its own entity;
	// unrelated push traffic must not corrupt it.
	if key.IsPoint() && key.PointID() != inbound.ID {
		return OutcomeSkipped
	}

	outcome := OutcomeSkipped
	exists := r.store.Mutate(key, func(entities []models.Message) ([]models.Message, bool) {
		for i := range entities {
			if entities[i].ID != inbound.ID {
				continue
			}
			if stale, reason := r.judge.Stale(entities[i], inbound); stale {
				outcome = OutcomeRejectedStale
				r.logger.WithFields(logrus.Fields{
					"message_id": inbound.ID,
					"bucket":     string(key),
					"reason":     reason,
				}).Debug("Dropped stale inbound snapshot")
				metrics.IncrementCounter("reconcile_stale_dropped",
					map[string]string{"reason": reason},
					"Inbound snapshots rejected by the staleness detector")
				return entities, false
			}
			// Replace in place: position is preserved, no re-sort.
			entities[i] = inbound.Clone()
			outcome = OutcomeReplaced
			return entities, true
		}

		// Absent: newest-first head insertion.
		entities = append([]models.Message{inbound.Clone()}, entities...)
		outcome = OutcomeInserted
		return entities, true
	})
	if !exists {
		return OutcomeSkipped
	}

	if outcome == OutcomeInserted || outcome == OutcomeReplaced {
		metrics.IncrementCounter("reconcile_applied",
			map[string]string{"outcome": string(outcome)},
			"Inbound snapshots folded into a cache bucket")
	}
	return outcome
}

// ReconcileScope merges one inbound entity into every bucket of its tenant
// scope, the platform-wide buckets, and its own point-lookup bucket.
// Returns the strongest outcome observed, so callers can decide whether the
// entity was newly seen anywhere.
func (r *Reconciler) ReconcileScope(inbound models.Message) Outcome {
	keys := r.store.KeysForScope(inbound.TenantScope)
	keys = append(keys, PointKey(inbound.ID))

	strongest := OutcomeSkipped
	for _, key := range keys {
		switch r.Reconcile(key, inbound) {
		case OutcomeInserted:
			strongest = OutcomeInserted
		case OutcomeReplaced:
			if strongest != OutcomeInserted {
				strongest = OutcomeReplaced
			}
		case OutcomeRejectedStale:
			if strongest == OutcomeSkipped {
				strongest = OutcomeRejectedStale
			}
		}
	}
	return strongest
}

// Remove deletes an entity from every bucket that holds it, in response to
// an explicit delete event from the server. Point-lookup buckets for the
// id are dropped entirely.
func (r *Reconciler) Remove(id string) int {
	removed := 0
	for _, key := range r.store.KeysContaining(id) {
		if key.IsPoint() {
			r.store.Drop(key)
			removed++
			continue
		}
		r.store.Mutate(key, func(entities []models.Message) ([]models.Message, bool) {
			for i := range entities {
				if entities[i].ID == id {
					removed++
					return append(entities[:i], entities[i+1:]...), true
				}
			}
			return entities, false
		})
	}
	return removed
}
