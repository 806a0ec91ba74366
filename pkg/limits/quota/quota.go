// Package quota enforces per-credential daily and monthly request quotas.
//
// Quotas use the same time-bucketed counter scheme as package ratelimit,
// with day and month granularity. Bucket labels are derived from UTC
// wall-clock, and each bucket's TTL matches its window so stale buckets
// expire on their own. Store failures are fail-open.
package quota

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
	ReasonDailyExceeded   = "daily_quota_exceeded"
	ReasonMonthlyExceeded = "monthly_quota_exceeded"
)

// monthTTL is the TTL for month buckets. Slightly over the longest month so
// a bucket never expires while still current; the label keying makes the
// exact value uncritical.
const monthTTL = 32 * 24 * time.Hour

// Config contains the per-credential quotas.
// Zero values mean no quota for that window.
type Config struct {
	// DailyQuota caps requests per credential per UTC day.
	DailyQuota int64

	// MonthlyQuota caps requests per credential per UTC month.
	MonthlyQuota int64
}

// CheckResult reports the outcome of a quota check.
type CheckResult struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Reason explains the denial (empty when allowed).
	Reason string

	// Current is the count in the violated window (denials only).
	Current int64

	// Limit is the configured cap for the violated window (denials only).
	Limit int64
}

// Manager checks and counts per-credential daily and monthly usage.
type Manager struct {
	store storage.Store

	mu  sync.RWMutex
	cfg Config

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With("component", "quota")
	}
}

// WithClock overrides the clock used for bucket labels.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a quota manager backed by the given counter store.
func NewManager(cfg Config, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "quota"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check reports whether a request on the given credential is inside its
// daily and monthly quotas. Call Increment once the request is attempted.
func (m *Manager) Check(ctx context.Context, credentialID string) *CheckResult {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	now := m.now()

	if cfg.DailyQuota > 0 {
		count, ok := m.count(ctx, dayKey(credentialID, now), "daily", credentialID)
		if ok && count >= cfg.DailyQuota {
			return &CheckResult{
				Allowed: false,
				Reason:  ReasonDailyExceeded,
				Current: count,
				Limit:   cfg.DailyQuota,
			}
		}
	}

	if cfg.MonthlyQuota > 0 {
		count, ok := m.count(ctx, monthKey(credentialID, now), "monthly", credentialID)
		if ok && count >= cfg.MonthlyQuota {
			return &CheckResult{
				Allowed: false,
				Reason:  ReasonMonthlyExceeded,
				Current: count,
				Limit:   cfg.MonthlyQuota,
			}
		}
	}

	return &CheckResult{Allowed: true}
}

// Increment counts an attempted request against both quota windows.
func (m *Manager) Increment(ctx context.Context, credentialID string) {
	now := m.now()
	m.bump(ctx, dayKey(credentialID, now), 24*time.Hour)
	m.bump(ctx, monthKey(credentialID, now), monthTTL)
}

// Usage returns the current daily and monthly counts for a credential.
func (m *Manager) Usage(ctx context.Context, credentialID string) (daily, monthly int64) {
	now := m.now()
	daily, _, _ = m.store.Get(ctx, dayKey(credentialID, now))
	monthly, _, _ = m.store.Get(ctx, monthKey(credentialID, now))
	return daily, monthly
}

// UpdateConfig replaces the quotas at runtime.
func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Config returns the current quotas.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// count reads a bucket, failing open on store errors.
func (m *Manager) count(ctx context.Context, key, window, credentialID string) (int64, bool) {
	v, _, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("quota check failed open",
			"window", window,
			"credential_id", credentialID,
			"error", err,
		)
		return 0, false
	}
	return v, true
}

func (m *Manager) bump(ctx context.Context, key string, ttl time.Duration) {
	v, err := m.store.Incr(ctx, key)
	if err != nil {
		m.logger.Warn("quota counter increment failed", "key", key, "error", err)
		return
	}
	if v == 1 {
		if err := m.store.Expire(ctx, key, ttl); err != nil {
			m.logger.Warn("quota counter expire failed", "key", key, "error", err)
		}
	}
}

func dayKey(credentialID string, now time.Time) string {
	return fmt.Sprintf("quota:%s:day:%s", credentialID, now.UTC().Format("20060102"))
}

func monthKey(credentialID string, now time.Time) string {
	return fmt.Sprintf("quota:%s:month:%s", credentialID, now.UTC().Format("200601"))
}
