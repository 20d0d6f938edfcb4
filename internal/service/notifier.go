package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"feedsync/internal/metrics"
	"feedsync/internal/models"
)

// AlertSink receives the transient in-app alert raised for every accepted
// new entity.
type AlertSink interface {
	ShowAlert(msg models.Message)
}

// NotificationGateway abstracts the native notification surface.
// RequestPermission may block on user interaction; the dispatcher always
// calls it off the event path.
type NotificationGateway interface {
	RequestPermission(ctx context.Context) (bool, error)
	Notify(title, body string) error
}

// VisibilityProbe reports whether the user is currently looking at the
// application.
type VisibilityProbe interface {
	Visible() bool
}

// Dispatcher decides how an accepted inbound entity is announced: a
// transient alert unconditionally, plus a native notification only when
// permission was granted and the page is hidden.
type Dispatcher struct {
	alerts     AlertSink
	gateway    NotificationGateway
	visibility VisibilityProbe
	logger     *logrus.Logger

	requestOnce sync.Once
	mu          sync.Mutex
	granted     bool
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(alerts AlertSink, gateway NotificationGateway, visibility VisibilityProbe, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		alerts:     alerts,
		gateway:    gateway,
		visibility: visibility,
		logger:     logger,
	}
}

// EnsurePermission requests native notification permission once per
// session. The request runs asynchronously and never blocks entity
// processing; until it resolves, dispatches simply skip the native path.
func (d *Dispatcher) EnsurePermission(ctx context.Context) {
	d.requestOnce.Do(func() {
		go func() {
			granted, err := d.gateway.RequestPermission(ctx)
			if err != nil {
				d.logger.WithError(err).Debug("Notification permission request failed")
				return
			}
			d.mu.Lock()
			d.granted = granted
			d.mu.Unlock()
			d.logger.WithField("granted", granted).Debug("Notification permission resolved")
		}()
	})
}

// PermissionGranted reports the resolved permission state.
func (d *Dispatcher) PermissionGranted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.granted
}

// Dispatch announces one accepted entity event. Only new-entity events are
// announced; updates and deletes change the cache silently.
func (d *Dispatcher) Dispatch(msg models.Message, kind models.EventKind) {
	if kind != models.EventEntityNew {
		return
	}

	d.alerts.ShowAlert(msg)
	metrics.IncrementCounter("notification_alert", nil, "Transient alerts raised for accepted new entities")

	if !d.PermissionGranted() || d.visibility.Visible() {
		return
	}

	title := "New " + string(msg.Type) + " received"
	if err := d.gateway.Notify(title, MaskContent(msg.Content)); err != nil {
		d.logger.WithError(err).Debug("Native notification failed")
		return
	}
	metrics.IncrementCounter("notification_native", nil, "Native notifications shown while the page was hidden")
}
