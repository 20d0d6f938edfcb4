package models

// Config holds the application configuration
type Config struct {
	API      APIConfig     `json:"api"`
	Channel  ChannelConfig `json:"channel"`
	Sync     SyncConfig    `json:"sync"`
	Tracing  TracingConfig `json:"tracing"`
	LogLevel string        `json:"log_level"`
}

// APIConfig holds the query/mutation service configuration
type APIConfig struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeoutSec"`
}

// ChannelConfig holds push channel configuration
type ChannelConfig struct {
	URL                string `json:"url"`
	ReconnectInitialMs int    `json:"reconnectInitialMs"`
	ReconnectMaxMs     int    `json:"reconnectMaxMs"`
	MaxAttempts        int    `json:"maxAttempts"`
	MailboxSize        int    `json:"mailboxSize"`
	PingIntervalSec    int    `json:"pingIntervalSec"`
}

// SyncConfig holds cache reconciliation and mutation configuration
type SyncConfig struct {
	GraceWindowSec     int `json:"graceWindowSec"`
	RefreshIntervalSec int `json:"refreshIntervalSec"`
	SweepTimeoutSec    int `json:"sweepTimeoutSec"`
	MutationTimeoutSec int `json:"mutationTimeoutSec"`
	PageSize           int `json:"pageSize"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	UseStdout    bool    `json:"use_stdout"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
