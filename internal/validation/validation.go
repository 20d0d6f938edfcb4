package validation

import (
	"fmt"
	"regexp"
	"strings"

	"feedsync/internal/errors"
	"feedsync/internal/models"
)

var (
	// Message ids are assigned by the authoritative service in the form
	// FB-<year>-<6 base36 chars>, e.g. FB-2024-AB12CD.
	messageIDPattern = regexp.MustCompile(`^FB-\d{4}-[A-Z0-9]{6}$`)

	// Tenant scopes are company codes, e.g. ACME0001.
	tenantScopePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{3,11}$`)
)

// ValidateMessageID checks a server-assigned message id. Tentative tokens
// are local artifacts and never valid here.
func ValidateMessageID(id string) error {
	if id == "" {
		return errors.NewValidationError("message_id", id, "must not be empty")
	}
	if strings.HasPrefix(id, models.TentativePrefix) {
		return errors.NewValidationError("message_id", id, "tentative tokens are not server ids")
	}
	if !messageIDPattern.MatchString(id) {
		return errors.NewValidationError("message_id", id, "must match FB-YYYY-XXXXXX")
	}
	return nil
}

// ValidateTenantScope checks a tenant scope (company code).
func ValidateTenantScope(scope string) error {
	if scope == "" {
		return errors.NewValidationError("tenant_scope", scope, "must not be empty")
	}
	if !tenantScopePattern.MatchString(scope) {
		return errors.NewValidationError("tenant_scope", scope,
			"must be 4-12 uppercase alphanumeric characters starting with a letter")
	}
	return nil
}

// ValidateStatus checks a triage status value.
func ValidateStatus(status models.Status) error {
	if !status.IsValid() {
		return errors.NewValidationError("status", string(status),
			fmt.Sprintf("must be one of %s, %s, %s, %s, %s",
				models.StatusNew, models.StatusInProgress, models.StatusResolved,
				models.StatusRejected, models.StatusSpam))
	}
	return nil
}

// ValidateMessage checks an inbound entity before it is allowed near the
// cache. Reconciliation never throws; callers drop entities that fail here.
func ValidateMessage(msg *models.Message) error {
	if msg == nil {
		return errors.NewValidationError("message", "", "must not be nil")
	}
	if err := ValidateMessageID(msg.ID); err != nil {
		return err
	}
	if err := ValidateTenantScope(msg.TenantScope); err != nil {
		return err
	}
	if err := ValidateStatus(msg.Status); err != nil {
		return err
	}
	return nil
}
