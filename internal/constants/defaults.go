package constants

// Default sync configuration values
const (
	DefaultGraceWindowSec     = 10
	DefaultRefreshIntervalSec = 60
	DefaultSweepTimeoutSec    = 30
	DefaultMutationTimeoutSec = 15
	DefaultPageSize           = 25
)

// Default push channel configuration values
const (
	DefaultReconnectInitialMs  = 1000
	DefaultReconnectMaxMs      = 30000
	DefaultReconnectAttempts   = 8
	DefaultMailboxSize         = 256
	DefaultPingIntervalSec     = 25
	DefaultHandshakeTimeoutSec = 10
	DefaultWriteTimeoutSec     = 5
	DefaultReadTimeoutSec      = 60
)

// Default HTTP configuration values
const (
	DefaultAPITimeoutSec         = 30
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Circuit breaker defaults for the query service
const (
	DefaultBreakerMaxFailures = 5
	DefaultBreakerResetSec    = 30
)

// Privacy settings: anonymous feedback content is masked in logs
const (
	DefaultContentPreviewLength = 24
	DefaultMessageIDLogLength   = 14
)
