package types

import (
	"context"

	"feedsync/internal/models"
)

// Client is the boundary to the authoritative query/mutation service. The
// server is authoritative for entity creation and for whether a status
// transition is permitted; everything client-side is a projection.
type Client interface {
	// FetchAll returns a scoped or platform-wide snapshot, flat or
	// paginated depending on the options.
	FetchAll(ctx context.Context, opts FetchOptions) (*FetchResult, error)

	// FetchByID returns a single entity, or nil when it does not exist.
	FetchByID(ctx context.Context, id string) (*models.Message, error)

	// UpdateStatus is the sole tenant-facing mutation entry point.
	UpdateStatus(ctx context.Context, id string, status models.Status, response *string) (*models.Message, error)
}
