package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGraceTable_ActiveInsideWindow(t *testing.T) {
	g := NewGraceTable(10 * time.Second)
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	assert.False(t, g.Active("FB-2024-AB12CD"))

	g.Touch("FB-2024-AB12CD")
	assert.True(t, g.Active("FB-2024-AB12CD"))

	current = current.Add(9 * time.Second)
	assert.True(t, g.Active("FB-2024-AB12CD"))

	current = current.Add(2 * time.Second)
	assert.False(t, g.Active("FB-2024-AB12CD"))
}

func TestGraceTable_ClearCancelsWindow(t *testing.T) {
	g := NewGraceTable(10 * time.Second)

	g.Touch("FB-2024-AB12CD")
	g.Clear("FB-2024-AB12CD")

	assert.False(t, g.Active("FB-2024-AB12CD"))
}

func TestGraceTable_TouchRestartsWindow(t *testing.T) {
	g := NewGraceTable(10 * time.Second)
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	g.Touch("FB-2024-AB12CD")
	current = current.Add(8 * time.Second)

	// A superseding mutation restarts the window from now
	g.Touch("FB-2024-AB12CD")
	current = current.Add(8 * time.Second)
	assert.True(t, g.Active("FB-2024-AB12CD"))

	current = current.Add(3 * time.Second)
	assert.False(t, g.Active("FB-2024-AB12CD"))
}

func TestGraceTable_IdsAreIndependent(t *testing.T) {
	g := NewGraceTable(10 * time.Second)

	g.Touch("FB-2024-AB12CD")
	assert.True(t, g.Active("FB-2024-AB12CD"))
	assert.False(t, g.Active("FB-2024-EF34GH"))
}
