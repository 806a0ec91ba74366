//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// TestServerStartStop starts the server against a real config file, checks
// the health and statistics endpoints, and verifies graceful shutdown.
func TestServerStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()

	configFile := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configFile, `
server:
  listen_address: "127.0.0.1:18880"

credentials:
  secrets:
    - "integration-test-key"

limits:
  requests_per_minute: 10
  requests_per_hour: 100

budget:
  daily: 1.0
  cost_per_thousand_chars: 0.001

storage:
  backend: "memory"

retention:
  enabled: false

telemetry:
  logging:
    level: "info"
    format: "json"
  metrics:
    enabled: true
`)

	binaryPath := buildSherpaBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "run", "--config", configFile)
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	if !waitForHealthy("http://127.0.0.1:18880/healthz", 10*time.Second) {
		t.Fatalf("server failed to start\nStdout: %s\nStderr: %s", stdout.String(), stderr.String())
	}

	// Credential statistics should list the configured key.
	resp, err := http.Get("http://127.0.0.1:18880/v1/credentials")
	if err != nil {
		t.Fatalf("credentials request failed: %v", err)
	}
	var stats []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding credentials response: %v", err)
	}
	resp.Body.Close()
	if len(stats) != 1 {
		t.Errorf("credentials = %d, want 1", len(stats))
	}

	// Metrics endpoint should be mounted.
	resp, err = http.Get("http://127.0.0.1:18880/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}

	// Graceful shutdown on SIGINT.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Errorf("failed to send SIGINT: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok || exitErr.ExitCode() != 130 {
				t.Logf("shutdown output - Stdout: %s\nStderr: %s", stdout.String(), stderr.String())
				t.Errorf("unexpected shutdown error: %v", err)
			}
		}
	case <-time.After(5 * time.Second):
		t.Error("server did not shut down within 5 seconds")
	}
}

// TestValidateCommand checks the validate subcommand's JSON output.
func TestValidateCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configFile, `
credentials:
  secrets:
    - "key-a"
    - "key-b"
limits:
  requests_per_minute: 42
`)

	binaryPath := buildSherpaBinary(t)

	cmd := exec.Command(binaryPath, "validate", "--config", configFile, "--format", "json")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("validate failed: %v\nOutput: %s", err, output)
	}

	var summary map[string]any
	if err := json.Unmarshal(output, &summary); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, output)
	}
	if summary["credentials"] != float64(2) {
		t.Errorf("credentials = %v, want 2", summary["credentials"])
	}
	if summary["requests_per_minute"] != float64(42) {
		t.Errorf("requests_per_minute = %v, want 42", summary["requests_per_minute"])
	}
}

// buildSherpaBinary builds the CLI binary once per test run.
func buildSherpaBinary(t *testing.T) string {
	t.Helper()

	binaryPath := "../bin/sherpa"
	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	t.Log("Building sherpa binary...")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/sherpa")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build sherpa: %v\nOutput: %s", err, output)
	}
	return binaryPath
}

// waitForHealthy waits for a health endpoint to return 200.
func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func createTestConfig(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
}
