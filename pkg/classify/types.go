// Package classify maps raw generation failures onto a closed error
// taxonomy, each entry carrying a recovery strategy and a retryability flag.
//
// Classification is deliberately a prioritized predicate table rather than
// nested conditionals: upstream endpoints signal failures through message
// text and status codes with no stable machine-readable kind, so substring
// matching is unavoidable, and the table makes the matching order explicit
// and independently testable. Earlier rules win; "invalid api key" must hit
// the authentication rule before the generic validation rule sees "invalid".
package classify

import "time"

// ErrorType is the closed taxonomy of generation failures.
type ErrorType string

const (
	// TypeAuthentication is a rejected credential (401/403, bad API key).
	TypeAuthentication ErrorType = "AUTHENTICATION"

	// TypeNetwork is a transport failure (connection reset, refused, DNS).
	TypeNetwork ErrorType = "NETWORK"

	// TypeAPIQuota is an exhausted upstream quota or billing limit.
	TypeAPIQuota ErrorType = "API_QUOTA"

	// TypeRateLimit is an upstream request-frequency rejection (429).
	TypeRateLimit ErrorType = "RATE_LIMIT"

	// TypeValidation is an invalid request that will never succeed as-is.
	TypeValidation ErrorType = "VALIDATION"

	// TypeContentPolicy is a prompt or response blocked by safety filtering.
	TypeContentPolicy ErrorType = "CONTENT_POLICY"

	// TypeTimeout is an attempt that exceeded its time box.
	TypeTimeout ErrorType = "TIMEOUT"

	// TypeResponseParsing is a malformed or empty upstream response.
	TypeResponseParsing ErrorType = "RESPONSE_PARSING"

	// TypeGeneric is any failure no other rule recognized.
	TypeGeneric ErrorType = "GENERIC"
)

// RecoveryStrategy tells the orchestrator how to proceed after a failure.
type RecoveryStrategy string

const (
	// StrategySwitchKey retries with a different credential.
	StrategySwitchKey RecoveryStrategy = "switch_key"

	// StrategyBackoff retries after an exponential backoff delay.
	StrategyBackoff RecoveryStrategy = "retry_with_backoff"

	// StrategyImmediateRetry retries at once with no delay.
	StrategyImmediateRetry RecoveryStrategy = "immediate_retry"

	// StrategyNoRetry propagates the failure to the caller.
	StrategyNoRetry RecoveryStrategy = "no_retry"
)

// Severity grades a classified failure for the per-credential counters.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Record is one classified failure. Immutable once created.
type Record struct {
	// Type is the taxonomy entry this failure mapped to.
	Type ErrorType

	// Message is the raw error message.
	Message string

	// Code is the status code extracted from the raw error (0 if none).
	Code int

	// CredentialID identifies the credential in use when the failure
	// occurred. Empty for failures with no credential in play.
	CredentialID string

	// Timestamp is when the failure was classified.
	Timestamp time.Time

	// Strategy is the recovery strategy for this failure kind.
	Strategy RecoveryStrategy

	// Retryable reports whether the orchestrator may retry at all.
	Retryable bool

	// Severity grades the failure for the per-credential counters.
	Severity Severity
}

// Signature is the counter key for a record: taxonomy entry plus severity.
func (r *Record) Signature() string {
	return string(r.Type) + ":" + string(r.Severity)
}
