package main

import (
	"runtime"
	"testing"
)

func TestVersionVariables(t *testing.T) {
	origVersion := Version
	origGitCommit := GitCommit
	origBuildDate := BuildDate
	defer func() {
		Version = origVersion
		GitCommit = origGitCommit
		BuildDate = origBuildDate
	}()

	Version = "0.1.0-test"
	GitCommit = "abc123"
	BuildDate = "2026-08-30"

	if Version != "0.1.0-test" {
		t.Errorf("Version = %q", Version)
	}
	if GitCommit != "abc123" {
		t.Errorf("GitCommit = %q", GitCommit)
	}
	if BuildDate != "2026-08-30" {
		t.Errorf("BuildDate = %q", BuildDate)
	}
}

func TestVersionCommandRegistered(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("Use = %q, want version", versionCmd.Use)
	}

	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd == versionCmd {
			found = true
		}
	}
	if !found {
		t.Error("version command not registered on root")
	}
}

func TestGoVersionAvailable(t *testing.T) {
	if runtime.Version() == "" {
		t.Error("runtime.Version() is empty")
	}
}
