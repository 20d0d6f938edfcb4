package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/constants"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{
	"api": {"base_url": "https://feedback.example.com"},
	"channel": {"url": "wss://feedback.example.com/channel"}
}`

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://feedback.example.com", cfg.API.BaseURL)
	assert.Equal(t, constants.DefaultAPITimeoutSec, cfg.API.TimeoutSec)
	assert.Equal(t, constants.DefaultGraceWindowSec, cfg.Sync.GraceWindowSec)
	assert.Equal(t, constants.DefaultRefreshIntervalSec, cfg.Sync.RefreshIntervalSec)
	assert.Equal(t, constants.DefaultSweepTimeoutSec, cfg.Sync.SweepTimeoutSec)
	assert.Equal(t, constants.DefaultMutationTimeoutSec, cfg.Sync.MutationTimeoutSec)
	assert.Equal(t, constants.DefaultReconnectAttempts, cfg.Channel.MaxAttempts)
	assert.Equal(t, constants.DefaultMailboxSize, cfg.Channel.MailboxSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `{
		"api": {"base_url": "https://feedback.example.com", "timeoutSec": 5},
		"channel": {"url": "wss://feedback.example.com/channel", "maxAttempts": 2},
		"sync": {"graceWindowSec": 3, "refreshIntervalSec": 120},
		"log_level": "debug"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.API.TimeoutSec)
	assert.Equal(t, 2, cfg.Channel.MaxAttempts)
	assert.Equal(t, 3, cfg.Sync.GraceWindowSec)
	assert.Equal(t, 120, cfg.Sync.RefreshIntervalSec)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing api url",
			content: `{"channel": {"url": "wss://feedback.example.com/channel"}}`,
		},
		{
			name:    "missing channel url",
			content: `{"api": {"base_url": "https://feedback.example.com"}}`,
		},
		{
			name: "channel url not websocket",
			content: `{
				"api": {"base_url": "https://feedback.example.com"},
				"channel": {"url": "https://feedback.example.com/channel"}
			}`,
		},
		{
			name: "reconnect delays inverted",
			content: `{
				"api": {"base_url": "https://feedback.example.com"},
				"channel": {"url": "wss://feedback.example.com/channel", "reconnectInitialMs": 5000, "reconnectMaxMs": 100}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeConfig(t, "{not json")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEEDSYNC_API_URL", "https://override.example.com")
	t.Setenv("FEEDSYNC_LOG_LEVEL", "warn")
	t.Setenv("FEEDSYNC_GRACE_WINDOW_SEC", "30")

	path := writeConfig(t, minimalConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 30, cfg.Sync.GraceWindowSec)
}

func TestLoadConfig_BadEnvOverrideIgnored(t *testing.T) {
	t.Setenv("FEEDSYNC_GRACE_WINDOW_SEC", "not-a-number")

	path := writeConfig(t, minimalConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultGraceWindowSec, cfg.Sync.GraceWindowSec)
}
