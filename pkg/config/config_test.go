package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sherpa.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// ============================================================
// Loading and defaults
// ============================================================

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
credentials:
  secrets: ["key-a"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Limits.RequestsPerMinute != DefaultRequestsPerMinute {
		t.Errorf("RequestsPerMinute = %d, want %d", cfg.Limits.RequestsPerMinute, DefaultRequestsPerMinute)
	}
	if cfg.Budget.WarningThreshold != DefaultWarningThreshold {
		t.Errorf("WarningThreshold = %v, want %v", cfg.Budget.WarningThreshold, DefaultWarningThreshold)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
limits:
  requests_per_minute: 5
budget:
  daily: 2.5
retry:
  base_delay: 250ms
storage:
  backend: sqlite
  sqlite:
    path: /tmp/test-counters.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.RequestsPerMinute != 5 {
		t.Errorf("RequestsPerMinute = %d, want 5", cfg.Limits.RequestsPerMinute)
	}
	if cfg.Budget.Daily != 2.5 {
		t.Errorf("Daily = %v, want 2.5", cfg.Budget.Daily)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/test-counters.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
credentials:
  secrets: ["key-file"]
limits:
  requests_per_minute: 5
`)
	t.Setenv("SHERPA_LIMITS_REQUESTS_PER_MINUTE", "9")
	t.Setenv("SHERPA_API_KEYS", "key-env-1, key-env-2")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides: %v", err)
	}
	if cfg.Limits.RequestsPerMinute != 9 {
		t.Errorf("RequestsPerMinute = %d, want 9 from env", cfg.Limits.RequestsPerMinute)
	}
	want := []string{"key-file", "key-env-1", "key-env-2"}
	if len(cfg.Credentials.Secrets) != len(want) {
		t.Fatalf("Secrets = %v, want %v", cfg.Credentials.Secrets, want)
	}
	for i := range want {
		if cfg.Credentials.Secrets[i] != want[i] {
			t.Errorf("Secrets[%d] = %q, want %q", i, cfg.Credentials.Secrets[i], want[i])
		}
	}
}

// ============================================================
// Validation
// ============================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.RequestsPerMinute = -1
	cfg.Budget.WarningThreshold = 1.5
	cfg.Storage.Backend = "redis"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("collected %d errors, want 3: %v", len(verr.Errors), verr)
	}
	if !strings.Contains(verr.Error(), "storage.backend") {
		t.Errorf("message %q does not name storage.backend", verr.Error())
	}
}

func TestValidate_Default(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

// ============================================================
// Hot reload
// ============================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "limits:\n  requests_per_minute: 5\n")

	var mu sync.Mutex
	var got *Config
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(path, WithDebounce(20*time.Millisecond))
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) {
			mu.Lock()
			got = cfg
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("limits:\n  requests_per_minute: 11\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		cfg := got
		mu.Unlock()
		if cfg != nil {
			if cfg.Limits.RequestsPerMinute != 11 {
				t.Fatalf("reloaded RequestsPerMinute = %d, want 11", cfg.Limits.RequestsPerMinute)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidEdit(t *testing.T) {
	path := writeConfig(t, "limits:\n  requests_per_minute: 5\n")

	calls := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(path, WithDebounce(20*time.Millisecond))
	go w.Watch(ctx, func(cfg *Config) { calls <- cfg })

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case cfg := <-calls:
		t.Fatalf("invalid edit reached the callback: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
