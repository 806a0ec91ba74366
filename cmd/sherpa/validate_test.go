package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  listen_address: "127.0.0.1:9990"
credentials:
  secrets:
    - "key-a"
limits:
  requests_per_minute: 30
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()
	cfgFile = path

	if err := validateConfig(validateCmd, nil); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	if err := validateConfig(validateCmd, nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
