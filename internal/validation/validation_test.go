package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"feedsync/internal/models"
)

func TestValidateMessageID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid id", id: "FB-2024-AB12CD", wantErr: false},
		{name: "valid id other year", id: "FB-2026-ZZ99XX", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "tentative token", id: "tmp-01HXYZABCDEF", wantErr: true},
		{name: "lowercase suffix", id: "FB-2024-ab12cd", wantErr: true},
		{name: "wrong prefix", id: "FX-2024-AB12CD", wantErr: true},
		{name: "short suffix", id: "FB-2024-AB12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTenantScope(t *testing.T) {
	tests := []struct {
		name    string
		scope   string
		wantErr bool
	}{
		{name: "valid scope", scope: "ACME0001", wantErr: false},
		{name: "valid other scope", scope: "OTHR0002", wantErr: false},
		{name: "letters only", scope: "ACMECORP", wantErr: false},
		{name: "empty", scope: "", wantErr: true},
		{name: "lowercase", scope: "acme0001", wantErr: true},
		{name: "too short", scope: "AC1", wantErr: true},
		{name: "starts with digit", scope: "0ACME001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantScope(tt.scope)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	valid := &models.Message{
		ID:          "FB-2024-AB12CD",
		TenantScope: "ACME0001",
		Status:      models.StatusNew,
	}
	assert.NoError(t, ValidateMessage(valid))

	assert.Error(t, ValidateMessage(nil))

	badStatus := &models.Message{ID: "FB-2024-AB12CD", TenantScope: "ACME0001", Status: "Archived"}
	assert.Error(t, ValidateMessage(badStatus))

	badScope := &models.Message{ID: "FB-2024-AB12CD", TenantScope: "acme", Status: models.StatusNew}
	assert.Error(t, ValidateMessage(badScope))
}
