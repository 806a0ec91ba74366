// Package ratelimit enforces per-credential request-frequency limits over
// minute and hour windows.
//
// Counters are time-bucketed keys in the shared counter store: the bucket
// label is wall-clock time truncated to the window granularity, and each
// bucket carries a TTL equal to its window so it self-expires. Checking and
// incrementing are separate steps: a check that passes does not consume
// budget until the call is actually attempted.
//
// Store failures are fail-open: a broken counter backend logs a warning and
// allows the request rather than denying traffic on infrastructure errors.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wander-hq/sherpa/pkg/limits/storage"
)

// Denial reasons reported in CheckResult.Reason.
const (
	ReasonMinuteExceeded = "minute_rate_limit_exceeded"
	ReasonHourExceeded   = "hour_rate_limit_exceeded"
)

// Config contains the per-credential rate limits.
// Zero values mean no limit for that window.
type Config struct {
	// RequestsPerMinute caps requests per credential per minute bucket.
	RequestsPerMinute int64

	// RequestsPerHour caps requests per credential per hour bucket.
	RequestsPerHour int64
}

// CheckResult reports the outcome of a rate limit check.
type CheckResult struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Reason explains the denial (empty when allowed).
	Reason string

	// Current is the count in the violated window (denials only).
	Current int64

	// Limit is the configured cap for the violated window (denials only).
	Limit int64

	// RetryAfter is how long until the violated bucket rolls over.
	RetryAfter time.Duration
}

// Limiter checks and counts per-credential request rates.
type Limiter struct {
	store storage.Store

	mu  sync.RWMutex
	cfg Config

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger.With("component", "ratelimit")
	}
}

// WithClock overrides the clock used for bucket labels.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a rate limiter backed by the given counter store.
func NewLimiter(cfg Config, store storage.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "ratelimit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether a request on the given credential is inside its
// minute and hour limits. It does not consume budget; call Increment once
// the request is actually attempted.
func (l *Limiter) Check(ctx context.Context, credentialID string) *CheckResult {
	l.mu.RLock()
	cfg := l.cfg
	l.mu.RUnlock()

	now := l.now()

	if cfg.RequestsPerMinute > 0 {
		count, err := l.count(ctx, minuteKey(credentialID, now))
		if err != nil {
			l.failOpen("minute", credentialID, err)
		} else if count >= cfg.RequestsPerMinute {
			return &CheckResult{
				Allowed:    false,
				Reason:     ReasonMinuteExceeded,
				Current:    count,
				Limit:      cfg.RequestsPerMinute,
				RetryAfter: untilNext(now, time.Minute),
			}
		}
	}

	if cfg.RequestsPerHour > 0 {
		count, err := l.count(ctx, hourKey(credentialID, now))
		if err != nil {
			l.failOpen("hour", credentialID, err)
		} else if count >= cfg.RequestsPerHour {
			return &CheckResult{
				Allowed:    false,
				Reason:     ReasonHourExceeded,
				Current:    count,
				Limit:      cfg.RequestsPerHour,
				RetryAfter: untilNext(now, time.Hour),
			}
		}
	}

	return &CheckResult{Allowed: true}
}

// Increment counts an attempted request against both windows.
// Called only after a passing Check, when the external call is actually made.
func (l *Limiter) Increment(ctx context.Context, credentialID string) {
	now := l.now()
	l.bump(ctx, minuteKey(credentialID, now), time.Minute)
	l.bump(ctx, hourKey(credentialID, now), time.Hour)
}

// Usage returns the current minute and hour counts for a credential.
func (l *Limiter) Usage(ctx context.Context, credentialID string) (minute, hour int64) {
	now := l.now()
	minute, _ = l.count(ctx, minuteKey(credentialID, now))
	hour, _ = l.count(ctx, hourKey(credentialID, now))
	return minute, hour
}

// UpdateConfig replaces the limits at runtime. Existing bucket counts carry
// over; only the caps change.
func (l *Limiter) UpdateConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Config returns the current limits.
func (l *Limiter) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// bump increments a bucket and arms its TTL on first touch.
func (l *Limiter) bump(ctx context.Context, key string, window time.Duration) {
	v, err := l.store.Incr(ctx, key)
	if err != nil {
		l.logger.Warn("rate counter increment failed", "key", key, "error", err)
		return
	}
	if v == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			l.logger.Warn("rate counter expire failed", "key", key, "error", err)
		}
	}
}

func (l *Limiter) count(ctx context.Context, key string) (int64, error) {
	v, _, err := l.store.Get(ctx, key)
	return v, err
}

func (l *Limiter) failOpen(window, credentialID string, err error) {
	l.logger.Warn("rate limit check failed open",
		"window", window,
		"credential_id", credentialID,
		"error", err,
	)
}

func minuteKey(credentialID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:minute:%s", credentialID, now.UTC().Format("200601021504"))
}

func hourKey(credentialID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:hour:%s", credentialID, now.UTC().Format("2006010215"))
}

// untilNext returns the time remaining until the current bucket of the given
// granularity rolls over.
func untilNext(now time.Time, window time.Duration) time.Duration {
	return now.Truncate(window).Add(window).Sub(now)
}
