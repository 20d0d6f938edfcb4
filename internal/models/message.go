package models

import (
	"strings"
	"time"
)

// MessageType classifies a feedback message. It is immutable after creation.
type MessageType string

const (
	TypeComplaint  MessageType = "complaint"
	TypePraise     MessageType = "praise"
	TypeSuggestion MessageType = "suggestion"
)

// Status is the triage state of a feedback message.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "InProgress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
	StatusSpam       Status = "Spam"
)

// statusTransitions defines the tenant-side triage workflow:
// New -> InProgress -> {Resolved | Rejected | Spam}.
// Resolved, Rejected and Spam are terminal for the tenant workflow.
var statusTransitions = map[Status][]Status{
	StatusNew:        {StatusInProgress},
	StatusInProgress: {StatusResolved, StatusRejected, StatusSpam},
	StatusResolved:   {},
	StatusRejected:   {},
	StatusSpam:       {},
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the workflow permits moving from s to next.
// A transition to the current state is not part of the workflow; callers
// treat it as an accepted no-op, not a violation.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TentativePrefix marks locally generated mutation tokens. Tokens carrying
// this prefix are projections of in-flight mutations and are never sent to
// the server.
const TentativePrefix = "tmp-"

// Message is the unit of synchronization: one feedback entity as held in the
// client cache. UpdatedAt is the only recency signal available and is not
// guaranteed monotonic across delivery paths.
type Message struct {
	ID          string      `json:"id"`
	TenantScope string      `json:"tenantScope"`
	Type        MessageType `json:"type"`
	Status      Status      `json:"status"`
	// PreviousStatus is set only when a platform admin overrode the tenant
	// workflow. Its presence locks the entity against tenant-side mutation.
	PreviousStatus *Status   `json:"previousStatus,omitempty"`
	Content        string    `json:"content"`
	Response       string    `json:"response,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// TentativeToken is non-empty only on local projections of an in-flight
	// mutation. It never crosses the wire.
	TentativeToken string `json:"-"`
}

// IsLocked reports whether a privileged override froze this entity against
// tenant-side mutation.
func (m *Message) IsLocked() bool {
	return m.PreviousStatus != nil
}

// IsTentative reports whether this copy is a local projection of an
// in-flight mutation rather than a server-confirmed snapshot.
func (m *Message) IsTentative() bool {
	return strings.HasPrefix(m.TentativeToken, TentativePrefix)
}

// Clone returns a deep copy. Cache writes are copy-on-write, so shared
// snapshots must never alias the PreviousStatus pointer.
func (m *Message) Clone() Message {
	out := *m
	if m.PreviousStatus != nil {
		prev := *m.PreviousStatus
		out.PreviousStatus = &prev
	}
	return out
}

// Pagination is the envelope metadata returned by paginated list queries.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
