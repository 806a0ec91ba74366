// Package config defines the service configuration, loaded from YAML with
// optional environment variable overrides.
//
// # Loading
//
// Load reads a file, fills defaults, and validates. LoadWithEnvOverrides
// additionally applies SHERPA_* environment variables on top, including
// the credential list from the variable named by credentials.secrets_env.
//
// # Hot reload
//
// Watcher re-loads the file when it changes on disk and hands the new
// configuration to a callback. Invalid edits are rejected and logged; the
// running configuration is never replaced by a broken one.
//
// # Validation
//
// Validate collects every rule violation into one ValidationError rather
// than stopping at the first, so a misconfigured file can be fixed in one
// pass.
package config
