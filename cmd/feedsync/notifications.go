package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"feedsync/internal/models"
	"feedsync/internal/service"
)

// logAlertSink is the headless stand-in for the UI's transient alert: every
// accepted new entity is announced on the log.
type logAlertSink struct {
	logger *logrus.Logger
}

func (s *logAlertSink) ShowAlert(msg models.Message) {
	s.logger.WithFields(logrus.Fields{
		"message_id":   service.SanitizeMessageID(msg.ID),
		"tenant_scope": msg.TenantScope,
		"type":         msg.Type,
	}).Info("New feedback received")
}

// noopGateway never grants native notification permission, so the
// dispatcher stays on the transient-alert path.
type noopGateway struct{}

func (g *noopGateway) RequestPermission(ctx context.Context) (bool, error) {
	return false, nil
}

func (g *noopGateway) Notify(title, body string) error {
	return nil
}

// neverVisible reports the page as hidden; a headless process has no
// visible page.
type neverVisible struct{}

func (v *neverVisible) Visible() bool {
	return false
}
