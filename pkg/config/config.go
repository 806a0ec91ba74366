package config

import "time"

// Config is the root configuration for the sherpa generation service.
// It covers the credential pool, rate and quota limits, budget control,
// retry behavior, the request queue, counter storage, and telemetry.
type Config struct {
	// Server contains the administrative HTTP server settings (health,
	// statistics, and metrics endpoints).
	Server ServerConfig `yaml:"server"`

	// Credentials configures the API credential pool.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Generation configures the external generation calls.
	Generation GenerationConfig `yaml:"generation"`

	// Limits configures per-credential rate limiting and quotas.
	Limits LimitsConfig `yaml:"limits"`

	// Budget configures cost accounting and budget enforcement.
	Budget BudgetConfig `yaml:"budget"`

	// Retry configures backoff between failed attempts.
	Retry RetryConfig `yaml:"retry"`

	// Queue configures the priority request queue and batch processor.
	Queue QueueConfig `yaml:"queue"`

	// Storage selects the counter store backend.
	Storage StorageConfig `yaml:"storage"`

	// Retention configures scheduled cleanup of expired counters and old
	// cost records.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains the administrative HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8880"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AdminTokens guards the /v1 API with static bearer tokens. Empty
	// leaves the API unguarded; health and metrics endpoints are always
	// open.
	AdminTokens []string `yaml:"admin_tokens"`
}

// CredentialsConfig configures the API credential pool.
type CredentialsConfig struct {
	// Secrets lists the API keys to seed the pool with. Prefer SecretsEnv
	// in production so keys stay out of config files.
	Secrets []string `yaml:"secrets"`

	// SecretsEnv names an environment variable holding a comma-separated
	// list of API keys, appended to Secrets at load time.
	// Default: "SHERPA_API_KEYS"
	SecretsEnv string `yaml:"secrets_env"`
}

// GenerationConfig configures calls to the generation endpoint.
type GenerationConfig struct {
	// Endpoint is the generation API root, without a trailing slash.
	// Default: "https://generativelanguage.googleapis.com/v1beta"
	Endpoint string `yaml:"endpoint"`

	// Model is the model identifier used in the request path.
	// Default: "gemini-2.0-flash"
	Model string `yaml:"model"`

	// Timeout bounds one generation attempt.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// ExpectedResponseChars seeds the pre-call cost estimate when a
	// request gives no response-length hint.
	// Default: 500
	ExpectedResponseChars int `yaml:"expected_response_chars"`
}

// LimitsConfig configures per-credential request limits. A zero value
// disables the corresponding limit.
type LimitsConfig struct {
	// RequestsPerMinute caps requests per credential per minute bucket.
	// Default: 60
	RequestsPerMinute int64 `yaml:"requests_per_minute"`

	// RequestsPerHour caps requests per credential per hour bucket.
	// Default: 1000
	RequestsPerHour int64 `yaml:"requests_per_hour"`

	// DailyQuota caps requests per credential per UTC day.
	// Default: 10000
	DailyQuota int64 `yaml:"daily_quota"`

	// MonthlyQuota caps requests per credential per UTC month.
	// Default: 250000
	MonthlyQuota int64 `yaml:"monthly_quota"`
}

// BudgetConfig configures cost accounting. Zero budgets mean no cap.
type BudgetConfig struct {
	// Daily is the maximum estimated spend per UTC day.
	// Default: 10.0
	Daily float64 `yaml:"daily"`

	// Monthly is the maximum estimated spend per UTC month.
	// Default: 200.0
	Monthly float64 `yaml:"monthly"`

	// CostPerThousandChars prices one thousand characters of combined
	// prompt and response text.
	// Default: 0.001
	CostPerThousandChars float64 `yaml:"cost_per_thousand_chars"`

	// WarningThreshold is the budget fraction (0..1) at which a warning
	// alert fires.
	// Default: 0.8
	WarningThreshold float64 `yaml:"warning_threshold"`
}

// RetryConfig configures the backoff schedule between attempts.
type RetryConfig struct {
	// MaxAttempts caps attempts per request. Zero means one attempt per
	// credential in the pool.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps any computed delay.
	// Default: 30s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the exponential growth factor per attempt.
	// Default: 2.0
	Multiplier float64 `yaml:"multiplier"`
}

// QueueConfig configures the priority queue and batch processor.
type QueueConfig struct {
	// MaxQueueSize caps the queued backlog.
	// Default: 256
	MaxQueueSize int `yaml:"max_queue_size"`

	// BatchSize is how many tasks one drain tick takes.
	// Default: 8
	BatchSize int `yaml:"batch_size"`

	// MaxConcurrency caps tasks running at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// PollInterval is the drain tick period.
	// Default: 100ms
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StorageConfig selects the counter store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures the sqlite counter store.
type SQLiteConfig struct {
	// Path is the database file location.
	// Default: "data/counters.db"
	Path string `yaml:"path"`
}

// RetentionConfig configures scheduled cleanup.
type RetentionConfig struct {
	// Enabled turns the cleanup scheduler on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for cleanup runs.
	// Default: "0 * * * *" (hourly)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric emission on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "sherpa" / "orchestrator"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}
