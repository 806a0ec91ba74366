// Package credentials manages the pool of API credentials used against the
// generation endpoint.
//
// Each credential carries a status and usage statistics. The pool owns all
// credential records exclusively: callers interact through stable opaque
// IDs, never indices, so removing one credential cannot shift or remap the
// statistics of another.
//
// # Status machine
//
//	active         -> rate_limited    rate window denied
//	active         -> quota_exceeded  daily/monthly quota denied
//	active         -> error           3 consecutive failures, or immediately
//	                                  on an authentication failure
//	{rate_limited, error, quota_exceeded} -> active
//	                                  on a subsequent success, or when the
//	                                  recovery cool-down elapses
//
// disabled is entered and left only through explicit administrative calls;
// no automatic transition touches it.
package credentials

import "time"

// Status is a credential's availability state.
type Status string

const (
	StatusActive        Status = "active"
	StatusRateLimited   Status = "rate_limited"
	StatusQuotaExceeded Status = "quota_exceeded"
	StatusError         Status = "error"
	StatusDisabled      Status = "disabled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRateLimited, StatusQuotaExceeded, StatusError, StatusDisabled:
		return true
	}
	return false
}

// credential is the pool's internal record. Never leaves the pool; callers
// get Stats copies.
type credential struct {
	id     string
	secret string
	status Status

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	consecutiveErrors  int64

	lastUsed  time.Time
	lastError string
	addedAt   time.Time
}

// Stats is a read-only view of one credential for the statistics surface.
// The secret is redacted to a short fingerprint.
type Stats struct {
	ID          string
	Fingerprint string
	Status      Status

	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	ConsecutiveErrors  int64

	LastUsed  time.Time
	LastError string
	AddedAt   time.Time
}

// Candidate is a selected credential handed to the orchestrator for one
// attempt.
type Candidate struct {
	ID     string
	Secret string
	Status Status
}
