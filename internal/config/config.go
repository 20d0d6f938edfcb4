package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"

	"feedsync/internal/constants"
	"feedsync/internal/models"
)

var (
	ErrMissingAPIURL     = models.ConfigError{Message: "missing feedback API base URL"}
	ErrMissingChannelURL = models.ConfigError{Message: "missing push channel URL"}
)

// LoadConfig reads, defaults, validates and applies environment overrides
// to a JSON configuration file.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - config path comes from the operator
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.API.TimeoutSec == 0 {
		c.API.TimeoutSec = constants.DefaultAPITimeoutSec
	}
	if c.Channel.ReconnectInitialMs == 0 {
		c.Channel.ReconnectInitialMs = constants.DefaultReconnectInitialMs
	}
	if c.Channel.ReconnectMaxMs == 0 {
		c.Channel.ReconnectMaxMs = constants.DefaultReconnectMaxMs
	}
	if c.Channel.MaxAttempts == 0 {
		c.Channel.MaxAttempts = constants.DefaultReconnectAttempts
	}
	if c.Channel.MailboxSize == 0 {
		c.Channel.MailboxSize = constants.DefaultMailboxSize
	}
	if c.Channel.PingIntervalSec == 0 {
		c.Channel.PingIntervalSec = constants.DefaultPingIntervalSec
	}
	if c.Sync.GraceWindowSec == 0 {
		c.Sync.GraceWindowSec = constants.DefaultGraceWindowSec
	}
	if c.Sync.RefreshIntervalSec == 0 {
		c.Sync.RefreshIntervalSec = constants.DefaultRefreshIntervalSec
	}
	if c.Sync.SweepTimeoutSec == 0 {
		c.Sync.SweepTimeoutSec = constants.DefaultSweepTimeoutSec
	}
	if c.Sync.MutationTimeoutSec == 0 {
		c.Sync.MutationTimeoutSec = constants.DefaultMutationTimeoutSec
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = constants.DefaultPageSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c *models.Config) error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return models.ConfigError{Message: "invalid feedback API base URL: " + c.API.BaseURL}
	}

	if c.Channel.URL == "" {
		return ErrMissingChannelURL
	}
	parsed, err := url.Parse(c.Channel.URL)
	if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") {
		return models.ConfigError{Message: "push channel URL must use ws or wss scheme: " + c.Channel.URL}
	}

	if c.Channel.ReconnectInitialMs > c.Channel.ReconnectMaxMs {
		return models.ConfigError{Message: "reconnect initial delay exceeds maximum delay"}
	}
	if c.Sync.GraceWindowSec < 0 {
		return models.ConfigError{Message: "grace window must not be negative"}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if baseURL := os.Getenv("FEEDSYNC_API_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if channelURL := os.Getenv("FEEDSYNC_CHANNEL_URL"); channelURL != "" {
		c.Channel.URL = channelURL
	}
	if level := os.Getenv("FEEDSYNC_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if window := os.Getenv("FEEDSYNC_GRACE_WINDOW_SEC"); window != "" {
		if v, err := strconv.Atoi(window); err == nil {
			c.Sync.GraceWindowSec = v
		}
	}
	if interval := os.Getenv("FEEDSYNC_REFRESH_INTERVAL_SEC"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			c.Sync.RefreshIntervalSec = v
		}
	}
}
