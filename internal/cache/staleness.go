package cache

import (
	"feedsync/internal/models"
)

// Staleness rejection reasons, logged with dropped updates.
const (
	ReasonGraceWindow      = "grace-window"
	ReasonStatusRegression = "status-regression"
	ReasonResponseCleared  = "response-cleared"
)

// GraceChecker reports whether an entity id is inside its post-mutation
// grace window. The mutation coordinator owns the table; the detector only
// consults it.
type GraceChecker interface {
	Active(id string) bool
}

// Detector judges whether an inbound snapshot is older than the locally
// held copy of the same entity. The server supplies no version counter, so
// this is a heuristic built on domain signals, not a causality proof: a
// legitimate workflow that genuinely resets an entity to New after
// InProgress, or genuinely clears a response, will be dropped as stale.
// That trade-off is intentional and matches the authoritative service's
// actual behavior, which never performs either regression.
type Detector struct {
	grace GraceChecker
}

// NewDetector creates a staleness detector backed by the given grace table.
func NewDetector(grace GraceChecker) *Detector {
	return &Detector{grace: grace}
}

// Stale reports whether inbound should be rejected in favor of local, and
// the reason when it should. local and inbound carry the same entity id.
func (d *Detector) Stale(local, inbound models.Message) (bool, string) {
	// Inside the grace window every snapshot for the id is presumed to be
	// a server echo of pre-mutation state racing the mutation's own
	// response.
	if d.grace != nil && d.grace.Active(inbound.ID) {
		return true, ReasonGraceWindow
	}

	// A regression to the initial state almost never reflects a genuine
	// forward transition.
	if inbound.Status == models.StatusNew && local.Status != models.StatusNew {
		return true, ReasonStatusRegression
	}

	// Response text, once present, should not silently vanish.
	if inbound.Response == "" && local.Response != "" {
		return true, ReasonResponseCleared
	}

	return false, ""
}
