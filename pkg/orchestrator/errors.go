package orchestrator

import (
	"errors"
	"fmt"

	"wander-hq/sherpa/pkg/classify"
)

// ErrEmptyPrompt is returned for a request with no prompt text.
var ErrEmptyPrompt = errors.New("orchestrator: empty prompt")

// BudgetExceededError reports a request denied by the budget guard before
// any external call was made.
type BudgetExceededError struct {
	Reason   string
	Estimate float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("orchestrator: %s (estimated cost %.6f)", e.Reason, e.Estimate)
}

// NoCredentialsError reports that the pool holds no usable credential.
type NoCredentialsError struct {
	Err error
}

func (e *NoCredentialsError) Error() string {
	return "orchestrator: no credentials available"
}

func (e *NoCredentialsError) Unwrap() error { return e.Err }

// AllRateLimitedError reports that every attempted credential was rate
// limited.
type AllRateLimitedError struct {
	Attempts int
}

func (e *AllRateLimitedError) Error() string {
	return fmt.Sprintf("orchestrator: all credentials rate limited after %d attempts", e.Attempts)
}

// AllQuotaExceededError reports that every attempted credential had
// exhausted its quota.
type AllQuotaExceededError struct {
	Attempts int
}

func (e *AllQuotaExceededError) Error() string {
	return fmt.Sprintf("orchestrator: all credentials quota exceeded after %d attempts", e.Attempts)
}

// RequestError wraps a single non-retryable classified failure.
type RequestError struct {
	Record *classify.Record
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("orchestrator: %s: %s", e.Record.Type, e.Record.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ExhaustedError is the aggregate failure after every retry attempt
// failed for mixed reasons. Records holds the per-attempt classifications
// in order.
type ExhaustedError struct {
	Attempts int
	Records  []*classify.Record
}

func (e *ExhaustedError) Error() string {
	if len(e.Records) == 0 {
		return fmt.Sprintf("orchestrator: request failed after %d attempts", e.Attempts)
	}
	last := e.Records[len(e.Records)-1]
	return fmt.Sprintf("orchestrator: request failed after %d attempts, last error %s: %s",
		e.Attempts, last.Type, last.Message)
}
