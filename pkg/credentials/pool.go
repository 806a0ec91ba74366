package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// recoveryCooldown is how long a non-disabled unhealthy credential sits
	// out before the pool offers it again as a primary candidate.
	recoveryCooldown = 5 * time.Minute

	// errorThreshold is the number of consecutive failures after which a
	// credential is marked as errored.
	errorThreshold = 3
)

var (
	// ErrNoCredentials is returned by SelectCandidate when the pool holds
	// no usable credential at all.
	ErrNoCredentials = errors.New("credentials: no usable credentials in pool")

	// ErrNotFound is returned when the referenced credential ID does not
	// exist in the pool.
	ErrNotFound = errors.New("credentials: credential not found")
)

// Pool holds the credential set and drives selection and health tracking.
// All methods are safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	creds map[string]*credential

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the pool's time source. Used by tests to drive the
// recovery cool-down deterministically.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithLogger sets the logger used for status transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// NewPool builds a pool seeded with one active credential per secret. Empty
// secrets are skipped.
func NewPool(secrets []string, opts ...Option) *Pool {
	p := &Pool{
		creds:  make(map[string]*credential),
		now:    time.Now,
		logger: slog.Default().With("component", "credentials"),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		p.addLocked(secret)
	}
	return p
}

// Add inserts a new active credential and returns its ID.
func (p *Pool) Add(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("credentials: empty secret")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.addLocked(secret)
	p.logger.Info("credential added", "credential_id", id, "pool_size", len(p.creds))
	return id, nil
}

func (p *Pool) addLocked(secret string) string {
	id := uuid.NewString()
	p.creds[id] = &credential{
		id:      id,
		secret:  secret,
		status:  StatusActive,
		addedAt: p.now(),
	}
	return id
}

// Remove deletes a credential. Statistics of the remaining credentials are
// untouched since IDs are stable.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.creds[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(p.creds, id)
	p.logger.Info("credential removed", "credential_id", id, "pool_size", len(p.creds))
	return nil
}

// Len returns the number of credentials in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// SelectCandidate picks the credential for the next attempt.
//
// Selection order:
//
//  1. Recover any non-disabled unhealthy credential whose cool-down has
//     elapsed back to active.
//  2. Among active credentials not in excluded, pick the one with the
//     fewest total requests.
//  3. If none, fall back to rate_limited and quota_exceeded credentials
//     not in excluded, again by fewest total requests. A throttled key
//     may answer; a skipped request never does.
//  4. If still none, try error credentials as a last resort.
//  5. If excluded ruled everything out but usable credentials exist, the
//     exclusion set is ignored once rather than failing the request.
//
// Disabled credentials are never returned. ErrNoCredentials is returned
// only when the pool holds no usable credential at all.
func (p *Pool) SelectCandidate(excluded map[string]bool) (*Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recoverDueLocked()

	usable := make([]*credential, 0, len(p.creds))
	for _, c := range p.creds {
		if c.status != StatusDisabled {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoCredentials
	}

	for _, tier := range selectionTiers {
		c := pickLocked(usable, excluded, tier)
		if c == nil {
			continue
		}
		if c.status != StatusActive {
			p.logger.Warn("no active credentials, falling back to unhealthy credential",
				"credential_id", c.id, "status", string(c.status))
		}
		return candidateOf(c), nil
	}
	// Everything usable was excluded this cycle; hand one back anyway.
	for _, tier := range selectionTiers {
		if c := pickLocked(usable, nil, tier); c != nil {
			return candidateOf(c), nil
		}
	}
	return nil, ErrNoCredentials
}

// selectionTiers orders fallback: throttled credentials may have recovered
// by the time the request lands, while error credentials are tried only
// when nothing else remains.
var selectionTiers = [][]Status{
	{StatusActive},
	{StatusRateLimited, StatusQuotaExceeded},
	{StatusError},
}

// pickLocked returns the least-used credential whose status is in the
// given tier, or nil.
func pickLocked(creds []*credential, excluded map[string]bool, tier []Status) *credential {
	matches := make([]*credential, 0, len(creds))
	for _, c := range creds {
		if excluded[c.id] {
			continue
		}
		for _, st := range tier {
			if c.status == st {
				matches = append(matches, c)
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].totalRequests != matches[j].totalRequests {
			return matches[i].totalRequests < matches[j].totalRequests
		}
		return matches[i].id < matches[j].id
	})
	return matches[0]
}

func candidateOf(c *credential) *Candidate {
	return &Candidate{ID: c.id, Secret: c.secret, Status: c.status}
}

// recoverDueLocked flips unhealthy credentials whose cool-down elapsed back
// to active.
func (p *Pool) recoverDueLocked() {
	now := p.now()
	for _, c := range p.creds {
		switch c.status {
		case StatusError, StatusRateLimited, StatusQuotaExceeded:
			if !c.lastUsed.IsZero() && now.Sub(c.lastUsed) >= recoveryCooldown {
				p.logger.Info("credential recovered after cooldown",
					"credential_id", c.id, "previous_status", string(c.status))
				c.status = StatusActive
				c.consecutiveErrors = 0
			}
		}
	}
}

// RecordOutcome updates a credential's statistics after one attempt.
//
// On success the consecutive error streak resets and a non-disabled
// credential returns to active. On failure the streak grows; reaching the
// threshold, or authFailure being set, marks the credential as errored.
func (p *Pool) RecordOutcome(id string, success bool, errMsg string, authFailure bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.creds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	c.totalRequests++
	c.lastUsed = p.now()

	if success {
		c.successfulRequests++
		c.consecutiveErrors = 0
		c.lastError = ""
		if c.status != StatusDisabled && c.status != StatusActive {
			p.logger.Info("credential recovered after success",
				"credential_id", c.id, "previous_status", string(c.status))
			c.status = StatusActive
		}
		return nil
	}

	c.failedRequests++
	c.consecutiveErrors++
	c.lastError = errMsg
	if c.status == StatusDisabled {
		return nil
	}
	if authFailure {
		p.markErrorLocked(c, "authentication failure")
	} else if c.consecutiveErrors >= errorThreshold {
		p.markErrorLocked(c, "consecutive failure threshold reached")
	}
	return nil
}

func (p *Pool) markErrorLocked(c *credential, reason string) {
	if c.status == StatusError {
		return
	}
	p.logger.Warn("credential marked as errored",
		"credential_id", c.id, "reason", reason, "consecutive_errors", c.consecutiveErrors)
	c.status = StatusError
}

// SetStatus forces a credential into the given status. This is the only
// way in or out of disabled.
func (p *Pool) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("credentials: invalid status %q", status)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.creds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c.status == status {
		return nil
	}
	p.logger.Info("credential status changed",
		"credential_id", id, "from", string(c.status), "to", string(status))
	c.status = status
	if status == StatusActive {
		c.consecutiveErrors = 0
	}
	return nil
}

// Status returns a credential's current status.
func (p *Pool) Status(id string) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.creds[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.status, nil
}

// ResetStatistics zeroes the counters of one credential, or of every
// credential when id is empty. Status is preserved except that errored
// credentials return to active, since the streak that put them there is
// gone. Safe to call repeatedly.
func (p *Pool) ResetStatistics(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != "" {
		c, ok := p.creds[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		resetLocked(c)
		return nil
	}
	for _, c := range p.creds {
		resetLocked(c)
	}
	return nil
}

func resetLocked(c *credential) {
	c.totalRequests = 0
	c.successfulRequests = 0
	c.failedRequests = 0
	c.consecutiveErrors = 0
	c.lastError = ""
	if c.status == StatusError {
		c.status = StatusActive
	}
}

// Statistics returns a snapshot of every credential, ordered by ID so the
// output is stable across calls.
func (p *Pool) Statistics() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stats, 0, len(p.creds))
	for _, c := range p.creds {
		out = append(out, Stats{
			ID:                 c.id,
			Fingerprint:        fingerprint(c.secret),
			Status:             c.status,
			TotalRequests:      c.totalRequests,
			SuccessfulRequests: c.successfulRequests,
			FailedRequests:     c.failedRequests,
			ConsecutiveErrors:  c.consecutiveErrors,
			LastUsed:           c.lastUsed,
			LastError:          c.lastError,
			AddedAt:            c.addedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountByStatus tallies credentials per status for the health surface.
func (p *Pool) CountByStatus() map[Status]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[Status]int)
	for _, c := range p.creds {
		counts[c.status]++
	}
	return counts
}

// fingerprint redacts a secret to its last four characters.
func fingerprint(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
