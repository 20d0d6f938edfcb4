package types

import (
	"feedsync/internal/models"
)

// FetchOptions narrows a feedback list query. A zero TenantScope requests
// the platform-wide (administrative) view. Page and Limit of zero request
// the unpaginated flat list. ID restricts the query to a single entity.
type FetchOptions struct {
	TenantScope string
	Page        int
	Limit       int
	ID          string
}

// Paginated reports whether the options request the envelope shape.
func (o FetchOptions) Paginated() bool {
	return o.Page > 0 && o.Limit > 0
}

// FetchResult is the decoded response of a list query. Pagination is nil
// when the server answered with the flat-list shape.
type FetchResult struct {
	Messages   []models.Message
	Pagination *models.Pagination
}

// UpdateStatusRequest is the body of the sole tenant-facing mutation.
type UpdateStatusRequest struct {
	Status   models.Status `json:"status"`
	Response *string       `json:"response,omitempty"`
}

// ListEnvelope mirrors the paginated wire shape.
type ListEnvelope struct {
	Data       []models.Message  `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// APIErrorBody is the error shape returned by the feedback service.
type APIErrorBody struct {
	Error string `json:"error"`
}
