package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// SHERPA_SECTION_FIELD (e.g. SHERPA_SERVER_LISTEN_ADDRESS) and always take
// precedence over file values.
//
// The credential list from the variable named by credentials.secrets_env
// (comma-separated) is appended to the configured secrets.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SHERPA_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("SHERPA_SERVER_ADMIN_TOKENS"); val != "" {
		cfg.Server.AdminTokens = nil
		for _, token := range strings.Split(val, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				cfg.Server.AdminTokens = append(cfg.Server.AdminTokens, token)
			}
		}
	}
	if val := os.Getenv("SHERPA_GENERATION_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Generation.Timeout = d
		}
	}
	if val := os.Getenv("SHERPA_LIMITS_REQUESTS_PER_MINUTE"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.RequestsPerMinute = n
		}
	}
	if val := os.Getenv("SHERPA_LIMITS_REQUESTS_PER_HOUR"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.RequestsPerHour = n
		}
	}
	if val := os.Getenv("SHERPA_LIMITS_DAILY_QUOTA"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.DailyQuota = n
		}
	}
	if val := os.Getenv("SHERPA_LIMITS_MONTHLY_QUOTA"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.MonthlyQuota = n
		}
	}
	if val := os.Getenv("SHERPA_BUDGET_DAILY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Budget.Daily = f
		}
	}
	if val := os.Getenv("SHERPA_BUDGET_MONTHLY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Budget.Monthly = f
		}
	}
	if val := os.Getenv("SHERPA_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("SHERPA_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("SHERPA_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SHERPA_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}

	if cfg.Credentials.SecretsEnv != "" {
		if val := os.Getenv(cfg.Credentials.SecretsEnv); val != "" {
			for _, secret := range strings.Split(val, ",") {
				secret = strings.TrimSpace(secret)
				if secret != "" {
					cfg.Credentials.Secrets = append(cfg.Credentials.Secrets, secret)
				}
			}
		}
	}
}
