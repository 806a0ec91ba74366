package classify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wander-hq/sherpa/pkg/generation"
)

// historyCap bounds the global classified-error ring buffer.
const historyCap = 100

// Classifier maps raw failures to Records and keeps bounded error history.
//
// The global history is a ring buffer of the last historyCap records; the
// per-credential counters map each credential to counts keyed by
// Record.Signature(). Both feed the health and statistics surfaces.
type Classifier struct {
	rules []rule

	mu       sync.Mutex
	history  []*Record
	counters map[string]map[string]int64

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger.With("component", "classify")
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// New creates a Classifier with the default rule table.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:    defaultRules,
		counters: make(map[string]map[string]int64),
		logger:   slog.Default().With("component", "classify"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps a raw failure to a Record and records it in the global and
// per-credential histories.
func (c *Classifier) Classify(rawErr error, credentialID string) *Record {
	msg, code := extract(rawErr)

	matched := genericRule
	for _, r := range c.rules {
		if r.match(msg, code) {
			matched = r
			break
		}
	}

	record := &Record{
		Type:         matched.errType,
		Message:      rawErr.Error(),
		Code:         code,
		CredentialID: credentialID,
		Timestamp:    c.now(),
		Strategy:     matched.strategy,
		Retryable:    matched.retryable,
		Severity:     matched.severity,
	}

	c.record(record)

	c.logger.Warn("classified generation failure",
		"type", record.Type,
		"strategy", record.Strategy,
		"retryable", record.Retryable,
		"code", record.Code,
		"credential_id", credentialID,
	)

	return record
}

// record appends to the bounded history and bumps the credential counter.
func (c *Classifier) record(r *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, r)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}

	if r.CredentialID != "" {
		byCred, ok := c.counters[r.CredentialID]
		if !ok {
			byCred = make(map[string]int64)
			c.counters[r.CredentialID] = byCred
		}
		byCred[r.Signature()]++
	}
}

// History returns a copy of the global error history, oldest first.
func (c *Classifier) History() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Record, len(c.history))
	copy(out, c.history)
	return out
}

// CredentialCounters returns a copy of the error counters for one credential.
func (c *Classifier) CredentialCounters(credentialID string) map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64)
	for sig, n := range c.counters[credentialID] {
		out[sig] = n
	}
	return out
}

// Reset clears the global history and all per-credential counters.
// A second Reset after the first is a no-op.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = nil
	c.counters = make(map[string]map[string]int64)
}

// extract pulls the lowercased message and status code out of a raw error.
func extract(err error) (string, int) {
	code := 0

	var apiErr *generation.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.StatusCode
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline exceeded", code
	}

	return strings.ToLower(err.Error()), code
}
