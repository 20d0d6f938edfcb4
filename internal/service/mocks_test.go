package service

import (
	"context"
	"sync"
	"time"

	"feedsync/internal/models"
	feedbacktypes "feedsync/pkg/feedback/types"
)

// Mock feedback service client
type mockFeedbackClient struct {
	mu          sync.Mutex
	fetchAllFn  func(ctx context.Context, opts feedbacktypes.FetchOptions) (*feedbacktypes.FetchResult, error)
	fetchByIDFn func(ctx context.Context, id string) (*models.Message, error)
	updateFn    func(ctx context.Context, id string, status models.Status, response *string) (*models.Message, error)

	fetchAllCalls []feedbacktypes.FetchOptions
	updateCalls   []updateCall
}

type updateCall struct {
	id       string
	status   models.Status
	response *string
}

func (m *mockFeedbackClient) FetchAll(ctx context.Context, opts feedbacktypes.FetchOptions) (*feedbacktypes.FetchResult, error) {
	m.mu.Lock()
	m.fetchAllCalls = append(m.fetchAllCalls, opts)
	fn := m.fetchAllFn
	m.mu.Unlock()
	if fn == nil {
		return &feedbacktypes.FetchResult{}, nil
	}
	return fn(ctx, opts)
}

func (m *mockFeedbackClient) FetchByID(ctx context.Context, id string) (*models.Message, error) {
	m.mu.Lock()
	fn := m.fetchByIDFn
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, id)
}

func (m *mockFeedbackClient) UpdateStatus(ctx context.Context, id string, status models.Status, response *string) (*models.Message, error) {
	m.mu.Lock()
	m.updateCalls = append(m.updateCalls, updateCall{id: id, status: status, response: response})
	fn := m.updateFn
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, id, status, response)
}

func (m *mockFeedbackClient) updateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updateCalls)
}

func (m *mockFeedbackClient) fetchAllCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetchAllCalls)
}

// Mock alert sink
type mockAlertSink struct {
	mu     sync.Mutex
	alerts []models.Message
}

func (m *mockAlertSink) ShowAlert(msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, msg)
}

func (m *mockAlertSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// Mock native notification gateway
type mockGateway struct {
	mu            sync.Mutex
	grantResult   bool
	grantErr      error
	grantRequests int
	notifications []string
	notifyErr     error
}

func (m *mockGateway) RequestPermission(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantRequests++
	return m.grantResult, m.grantErr
}

func (m *mockGateway) Notify(title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.notifications = append(m.notifications, title)
	return nil
}

func (m *mockGateway) notifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *mockGateway) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantRequests
}

// Mock page visibility probe
type mockVisibility struct {
	mu      sync.Mutex
	visible bool
}

func (m *mockVisibility) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

func (m *mockVisibility) set(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = visible
}

// Mock notifier for engine tests
type mockNotifier struct {
	mu         sync.Mutex
	dispatched []models.Message
}

func (m *mockNotifier) Dispatch(msg models.Message, kind models.EventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, msg)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dispatched)
}

func testMessage(id, scope string, status models.Status) models.Message {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.Message{
		ID:          id,
		TenantScope: scope,
		Type:        models.TypeComplaint,
		Status:      status,
		Content:     "the lobby coffee machine is broken",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
