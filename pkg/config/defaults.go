package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8880"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Credential defaults
	DefaultSecretsEnv = "SHERPA_API_KEYS"

	// Generation defaults
	DefaultGenerationEndpoint    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGenerationModel       = "gemini-2.0-flash"
	DefaultGenerationTimeout     = 30 * time.Second
	DefaultExpectedResponseChars = 500

	// Limit defaults
	DefaultRequestsPerMinute = int64(60)
	DefaultRequestsPerHour   = int64(1000)
	DefaultDailyQuota        = int64(10000)
	DefaultMonthlyQuota      = int64(250000)

	// Budget defaults
	DefaultDailyBudget          = 10.0
	DefaultMonthlyBudget        = 200.0
	DefaultCostPerThousandChars = 0.001
	DefaultWarningThreshold     = 0.8

	// Retry defaults
	DefaultRetryBaseDelay  = time.Second
	DefaultRetryMaxDelay   = 30 * time.Second
	DefaultRetryMultiplier = 2.0

	// Queue defaults
	DefaultMaxQueueSize      = 256
	DefaultBatchSize         = 8
	DefaultMaxConcurrency    = 4
	DefaultQueuePollInterval = 100 * time.Millisecond

	// Storage defaults
	DefaultStorageBackend = "memory"
	DefaultSQLitePath     = "data/counters.db"

	// Retention defaults
	DefaultRetentionEnabled  = true
	DefaultRetentionSchedule = "0 * * * *"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "sherpa"
	DefaultMetricsSubsystem = "orchestrator"
)

// ApplyDefaults fills unset fields with default values. It only touches
// zero values, so explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Credentials.SecretsEnv == "" {
		cfg.Credentials.SecretsEnv = DefaultSecretsEnv
	}

	if cfg.Generation.Endpoint == "" {
		cfg.Generation.Endpoint = DefaultGenerationEndpoint
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultGenerationModel
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = DefaultGenerationTimeout
	}
	if cfg.Generation.ExpectedResponseChars == 0 {
		cfg.Generation.ExpectedResponseChars = DefaultExpectedResponseChars
	}

	if cfg.Limits.RequestsPerMinute == 0 {
		cfg.Limits.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Limits.RequestsPerHour == 0 {
		cfg.Limits.RequestsPerHour = DefaultRequestsPerHour
	}
	if cfg.Limits.DailyQuota == 0 {
		cfg.Limits.DailyQuota = DefaultDailyQuota
	}
	if cfg.Limits.MonthlyQuota == 0 {
		cfg.Limits.MonthlyQuota = DefaultMonthlyQuota
	}

	if cfg.Budget.Daily == 0 {
		cfg.Budget.Daily = DefaultDailyBudget
	}
	if cfg.Budget.Monthly == 0 {
		cfg.Budget.Monthly = DefaultMonthlyBudget
	}
	if cfg.Budget.CostPerThousandChars == 0 {
		cfg.Budget.CostPerThousandChars = DefaultCostPerThousandChars
	}
	if cfg.Budget.WarningThreshold == 0 {
		cfg.Budget.WarningThreshold = DefaultWarningThreshold
	}

	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = DefaultRetryMultiplier
	}

	if cfg.Queue.MaxQueueSize == 0 {
		cfg.Queue.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = DefaultBatchSize
	}
	if cfg.Queue.MaxConcurrency == 0 {
		cfg.Queue.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = DefaultQueuePollInterval
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}

	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
}

// DefaultConfig returns a fully defaulted configuration with retention and
// metrics enabled.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Retention.Enabled = DefaultRetentionEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}
