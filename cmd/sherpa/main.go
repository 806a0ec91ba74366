// Sherpa is a resilient orchestration service for generative AI requests.
//
// It fronts a pool of API credentials and provides:
//   - Automatic credential rotation and failure recovery
//   - Per-credential rate limiting and daily/monthly quotas
//   - Character-based cost tracking with budget enforcement
//   - Error classification with type-aware retry backoff
//   - A priority request queue with bounded concurrency
//
// Usage:
//
//	# Start the server with default configuration
//	sherpa run
//
//	# Start with a custom configuration file
//	sherpa run --config /etc/sherpa/config.yaml
//
//	# Validate the configuration without starting
//	sherpa validate
//
//	# Show version information
//	sherpa version
package main

func main() {
	Execute()
}
