package classify

import "strings"

// rule is one entry in the prioritized classification table.
type rule struct {
	// match reports whether this rule recognizes the failure. msg is the
	// lowercased error message; code is the extracted status code (0 if none).
	match func(msg string, code int) bool

	errType   ErrorType
	strategy  RecoveryStrategy
	retryable bool
	severity  Severity
}

// containsAny reports whether msg contains any of the needles.
func containsAny(msg string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// defaultRules is the classification table, checked in order. The first
// matching rule wins, so more specific indicators sit above generic ones:
// quota before rate limit would misfile "quota exceeded" messages that also
// mention limits, and authentication must precede validation because auth
// failures often contain "invalid".
var defaultRules = []rule{
	{
		match: func(msg string, code int) bool {
			return code == 429 || containsAny(msg, "rate limit", "rate_limit", "too many requests", "resource exhausted", "resource_exhausted")
		},
		errType:   TypeRateLimit,
		strategy:  StrategySwitchKey,
		retryable: true,
		severity:  SeverityWarning,
	},
	{
		match: func(msg string, code int) bool {
			return containsAny(msg, "quota", "billing", "usage limit")
		},
		errType:   TypeAPIQuota,
		strategy:  StrategySwitchKey,
		retryable: true,
		severity:  SeverityWarning,
	},
	{
		match: func(msg string, code int) bool {
			return code == 401 || code == 403 ||
				containsAny(msg, "unauthorized", "unauthenticated", "api key", "api_key", "permission denied", "forbidden")
		},
		errType:   TypeAuthentication,
		strategy:  StrategySwitchKey,
		retryable: true,
		severity:  SeverityCritical,
	},
	{
		match: func(msg string, code int) bool {
			return code == 408 || code == 504 ||
				containsAny(msg, "timeout", "timed out", "deadline exceeded")
		},
		errType:   TypeTimeout,
		strategy:  StrategyBackoff,
		retryable: true,
		severity:  SeverityWarning,
	},
	{
		match: func(msg string, code int) bool {
			return code == 502 || code == 503 ||
				containsAny(msg, "network", "connection reset", "connection refused", "broken pipe", "no such host", "unexpected eof", "econnreset")
		},
		errType:   TypeNetwork,
		strategy:  StrategyBackoff,
		retryable: true,
		severity:  SeverityWarning,
	},
	{
		match: func(msg string, code int) bool {
			return containsAny(msg, "blocked", "safety", "content policy", "harm category")
		},
		errType:   TypeContentPolicy,
		strategy:  StrategyNoRetry,
		retryable: false,
		severity:  SeverityError,
	},
	{
		match: func(msg string, code int) bool {
			return code == 400 || containsAny(msg, "validation", "invalid", "bad request", "malformed")
		},
		errType:   TypeValidation,
		strategy:  StrategyNoRetry,
		retryable: false,
		severity:  SeverityError,
	},
	{
		match: func(msg string, code int) bool {
			return containsAny(msg, "parse", "json", "unmarshal", "unexpected response", "empty response")
		},
		errType:   TypeResponseParsing,
		strategy:  StrategyImmediateRetry,
		retryable: true,
		severity:  SeverityWarning,
	},
}

// genericRule is the fallback when no table entry matches.
var genericRule = rule{
	errType:   TypeGeneric,
	strategy:  StrategyBackoff,
	retryable: true,
	severity:  SeverityError,
}
