// Package cli provides shared helpers for the sherpa command-line
// interface: typed command errors, shutdown signal handling, and output
// formatting for command results.
package cli
