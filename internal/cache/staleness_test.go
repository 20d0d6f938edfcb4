package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"feedsync/internal/models"
)

type stubGrace struct {
	active map[string]bool
}

func (s *stubGrace) Active(id string) bool {
	return s.active[id]
}

func TestDetector_Stale(t *testing.T) {
	tests := []struct {
		name    string
		local   models.Message
		inbound models.Message
		grace   bool
		stale   bool
		reason  string
	}{
		{
			name:    "fresh update accepted",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress},
			stale:   false,
		},
		{
			name:    "status regression to new rejected",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
			stale:   true,
			reason:  ReasonStatusRegression,
		},
		{
			name:    "new over new accepted",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
			stale:   false,
		},
		{
			name:    "response disappearance rejected",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress, Response: "Thanks"},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusResolved},
			stale:   true,
			reason:  ReasonResponseCleared,
		},
		{
			name:    "response update accepted",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress, Response: "Thanks"},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress, Response: "Thanks, fixed"},
			stale:   false,
		},
		{
			name:    "grace window rejects everything",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusResolved, Response: "done"},
			grace:   true,
			stale:   true,
			reason:  ReasonGraceWindow,
		},
		{
			name:    "regression and cleared response during grace reports grace",
			local:   models.Message{ID: "FB-2024-AB12CD", Status: models.StatusResolved, Response: "done"},
			inbound: models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
			grace:   true,
			stale:   true,
			reason:  ReasonGraceWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grace := &stubGrace{active: map[string]bool{}}
			if tt.grace {
				grace.active[tt.inbound.ID] = true
			}
			d := NewDetector(grace)

			stale, reason := d.Stale(tt.local, tt.inbound)
			assert.Equal(t, tt.stale, stale)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestDetector_NilGraceChecker(t *testing.T) {
	d := NewDetector(nil)
	stale, _ := d.Stale(
		models.Message{ID: "FB-2024-AB12CD", Status: models.StatusNew},
		models.Message{ID: "FB-2024-AB12CD", Status: models.StatusInProgress},
	)
	assert.False(t, stale)
}
