package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"feedsync/internal/errors"
	"feedsync/internal/models"
	"feedsync/pkg/feedback/types"
)

// FeedbackClient talks to the authoritative feedback service over REST.
type FeedbackClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	logger    *logrus.Logger
}

// NewClient creates a feedback service client.
func NewClient(baseURL, authToken string, httpClient *http.Client) types.Client {
	return NewClientWithLogger(baseURL, authToken, httpClient, nil)
}

// NewClientWithLogger creates a feedback service client with a custom logger.
func NewClientWithLogger(baseURL, authToken string, httpClient *http.Client, logger *logrus.Logger) types.Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &FeedbackClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		client:    httpClient,
		logger:    logger,
	}
}

// FetchAll returns a snapshot of feedback messages. The server answers with
// a flat array for unpaginated queries and a {data, pagination} envelope for
// paginated ones; both decode into the same FetchResult.
func (c *FeedbackClient) FetchAll(ctx context.Context, opts types.FetchOptions) (*types.FetchResult, error) {
	endpoint := c.baseURL + "/api/v1/feedback"

	query := url.Values{}
	if opts.TenantScope != "" {
		query.Set("tenant", opts.TenantScope)
	}
	if opts.Paginated() {
		query.Set("page", strconv.Itoa(opts.Page))
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.ID != "" {
		query.Set("id", opts.ID)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.apiError(endpoint, status, body)
	}

	return decodeListBody(body)
}

// FetchByID returns a single entity, or nil when the server has no entity
// with that id.
func (c *FeedbackClient) FetchByID(ctx context.Context, id string) (*models.Message, error) {
	endpoint := fmt.Sprintf("%s/api/v1/feedback/%s", c.baseURL, url.PathEscape(id))

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var msg models.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFeedbackAPI, "failed to decode entity")
		}
		return &msg, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, c.apiError(endpoint, status, body)
	}
}

// UpdateStatus performs the tenant-facing status mutation and returns the
// canonical entity the server settled on. Locked entities are refused
// server-side with 423 regardless of any client-side fast path.
func (c *FeedbackClient) UpdateStatus(ctx context.Context, id string, status models.Status, response *string) (*models.Message, error) {
	endpoint := fmt.Sprintf("%s/api/v1/feedback/%s/status", c.baseURL, url.PathEscape(id))

	payload, err := json.Marshal(types.UpdateStatusRequest{Status: status, Response: response})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode status update")
	}

	body, httpStatus, err := c.do(ctx, http.MethodPatch, endpoint, payload)
	if err != nil {
		return nil, err
	}

	switch httpStatus {
	case http.StatusOK:
		var msg models.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFeedbackAPI, "failed to decode canonical entity")
		}
		return &msg, nil
	case http.StatusLocked:
		return nil, errors.NewLockedEntityError(id)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, errors.NewMutationRejectedError(id, fmt.Errorf("%s", apiMessage(body, httpStatus)))
	default:
		return nil, c.apiError(endpoint, httpStatus, body)
	}
}

func (c *FeedbackClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "feedback API call cancelled")
		}
		return nil, 0, errors.WrapRetryable(err, errors.ErrCodeFeedbackAPI, "feedback API unreachable")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WithError(cerr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, errors.ErrCodeFeedbackAPI, "failed to read response body")
	}

	return body, resp.StatusCode, nil
}

func (c *FeedbackClient) apiError(endpoint string, status int, body []byte) error {
	return errors.NewAPIError(endpoint, status, fmt.Errorf("%s", apiMessage(body, status)))
}

// decodeListBody accepts both list shapes the service produces.
func decodeListBody(body []byte) (*types.FetchResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []models.Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFeedbackAPI, "failed to decode entity list")
		}
		return &types.FetchResult{Messages: messages}, nil
	}

	var envelope types.ListEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedbackAPI, "failed to decode entity envelope")
	}
	pagination := envelope.Pagination
	return &types.FetchResult{Messages: envelope.Data, Pagination: &pagination}, nil
}

func apiMessage(body []byte, status int) string {
	var apiErr types.APIErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return fmt.Sprintf("unexpected status %d", status)
}
