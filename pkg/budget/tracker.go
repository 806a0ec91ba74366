package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// historyCap bounds the cost record history.
	historyCap = 1000

	// alertsCap bounds the retained alert list.
	alertsCap = 50

	// defaultWarningThreshold applies when Config.WarningThreshold is zero.
	defaultWarningThreshold = 0.8
)

// Tracker accumulates cost and enforces daily/monthly budgets.
// All methods are safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	cfg Config

	totalCost   float64
	dailyCost   float64
	monthlyCost float64

	// Lazy reset markers: the UTC date and month the accumulators belong to.
	dailyMarker   string
	monthlyMarker string

	overBudget bool
	warned     map[string]bool // one-shot warning latch per window

	history []CostRecord
	alerts  []Alert

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger.With("component", "budget")
	}
}

// WithClock overrides the clock used for windowing and timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a budget tracker.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = defaultWarningThreshold
	}
	t := &Tracker{
		cfg:    cfg,
		warned: make(map[string]bool),
		logger: slog.Default().With("component", "budget"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.dailyMarker = dayMarker(t.now())
	t.monthlyMarker = monthMarker(t.now())
	return t
}

// EstimateCost prices a prompt plus an expected response length.
func (t *Tracker) EstimateCost(prompt string, expectedResponseChars int) float64 {
	t.mu.Lock()
	perK := t.cfg.CostPerThousandChars
	t.mu.Unlock()

	total := len(prompt) + expectedResponseChars
	return float64(total) / 1000.0 * perK
}

// CanAfford reports whether an estimated cost fits the remaining budgets.
// This is checked before any external call; a denial costs nothing and
// touches no credential.
func (t *Tracker) CanAfford(estimate float64) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()

	if t.overBudget {
		return Decision{Allowed: false, Reason: ReasonBudgetExceeded}
	}
	if t.cfg.DailyBudget > 0 && t.dailyCost+estimate > t.cfg.DailyBudget {
		return Decision{Allowed: false, Reason: ReasonBudgetExceeded}
	}
	if t.cfg.MonthlyBudget > 0 && t.monthlyCost+estimate > t.cfg.MonthlyBudget {
		return Decision{Allowed: false, Reason: ReasonBudgetExceeded}
	}
	return Decision{Allowed: true}
}

// Record accounts a completed request and returns the cost charged.
// Alert thresholds are evaluated after the accumulators update.
func (t *Tracker) Record(inputChars, outputChars int, priority string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()

	total := inputChars + outputChars
	cost := float64(total) / 1000.0 * t.cfg.CostPerThousandChars

	t.totalCost += cost
	t.dailyCost += cost
	t.monthlyCost += cost

	t.history = append(t.history, CostRecord{
		Cost:        cost,
		InputChars:  inputChars,
		OutputChars: outputChars,
		TotalChars:  total,
		Priority:    priority,
		Timestamp:   t.now(),
	})
	if len(t.history) > historyCap {
		t.history = t.history[len(t.history)-historyCap:]
	}

	t.checkThresholdLocked("daily", t.dailyCost, t.cfg.DailyBudget)
	t.checkThresholdLocked("monthly", t.monthlyCost, t.cfg.MonthlyBudget)

	return cost
}

// Snapshot returns the current budget state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()

	snap := Snapshot{
		TotalCost:     t.totalCost,
		DailyCost:     t.dailyCost,
		MonthlyCost:   t.monthlyCost,
		DailyBudget:   t.cfg.DailyBudget,
		MonthlyBudget: t.cfg.MonthlyBudget,
		OverBudget:    t.overBudget,
		BudgetWarning: t.warned["daily"] || t.warned["monthly"],
		RecordCount:   len(t.history),
		Alerts:        make([]Alert, len(t.alerts)),
	}
	copy(snap.Alerts, t.alerts)

	if t.cfg.DailyBudget > 0 {
		snap.DailyRatio = t.dailyCost / t.cfg.DailyBudget
	}
	if t.cfg.MonthlyBudget > 0 {
		snap.MonthlyRatio = t.monthlyCost / t.cfg.MonthlyBudget
	}
	return snap
}

// RecentRecords returns up to n most recent cost records, newest last.
func (t *Tracker) RecentRecords(n int) []CostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.history) {
		n = len(t.history)
	}
	out := make([]CostRecord, n)
	copy(out, t.history[len(t.history)-n:])
	return out
}

// UpdateConfig replaces the budget parameters at runtime. Accumulators and
// markers carry over; only caps and pricing change.
func (t *Tracker) UpdateConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = defaultWarningThreshold
	}
	t.cfg = cfg

	// A raised budget may clear the over-budget latch.
	t.overBudget = (t.cfg.DailyBudget > 0 && t.dailyCost >= t.cfg.DailyBudget) ||
		(t.cfg.MonthlyBudget > 0 && t.monthlyCost >= t.cfg.MonthlyBudget)
}

// Config returns the current budget parameters.
func (t *Tracker) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Reset zeroes all accumulators, history, and alerts.
// A second Reset after the first is a no-op.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalCost = 0
	t.dailyCost = 0
	t.monthlyCost = 0
	t.overBudget = false
	t.warned = make(map[string]bool)
	t.history = nil
	t.alerts = nil
	t.dailyMarker = dayMarker(t.now())
	t.monthlyMarker = monthMarker(t.now())
}

// maybeResetLocked zeroes accumulators whose calendar window has passed.
// Caller must hold mu.
func (t *Tracker) maybeResetLocked() {
	now := t.now()

	if day := dayMarker(now); day != t.dailyMarker {
		t.dailyCost = 0
		t.dailyMarker = day
		t.warned["daily"] = false
		t.recomputeOverBudgetLocked()
	}
	if month := monthMarker(now); month != t.monthlyMarker {
		t.monthlyCost = 0
		t.monthlyMarker = month
		t.warned["monthly"] = false
		t.recomputeOverBudgetLocked()
	}
}

func (t *Tracker) recomputeOverBudgetLocked() {
	t.overBudget = (t.cfg.DailyBudget > 0 && t.dailyCost >= t.cfg.DailyBudget) ||
		(t.cfg.MonthlyBudget > 0 && t.monthlyCost >= t.cfg.MonthlyBudget)
}

// checkThresholdLocked evaluates one window's alert thresholds after an
// accumulator update. Caller must hold mu.
func (t *Tracker) checkThresholdLocked(window string, used, limit float64) {
	if limit <= 0 {
		return
	}
	ratio := used / limit

	if ratio >= 1.0 {
		if !t.overBudget {
			t.overBudget = true
			t.appendAlertLocked(Alert{
				Level:     AlertExceeded,
				Window:    window,
				Ratio:     ratio,
				Message:   fmt.Sprintf("%s budget exceeded: %.4f of %.4f", window, used, limit),
				Timestamp: t.now(),
			})
			t.logger.Error("budget exceeded", "window", window, "used", used, "limit", limit)
		}
		return
	}

	if ratio >= t.cfg.WarningThreshold && !t.warned[window] {
		t.warned[window] = true
		t.appendAlertLocked(Alert{
			Level:     AlertWarning,
			Window:    window,
			Ratio:     ratio,
			Message:   fmt.Sprintf("%s budget at %.0f%%: %.4f of %.4f", window, ratio*100, used, limit),
			Timestamp: t.now(),
		})
		t.logger.Warn("budget warning threshold crossed", "window", window, "ratio", ratio)
	}
}

func (t *Tracker) appendAlertLocked(a Alert) {
	t.alerts = append(t.alerts, a)
	if len(t.alerts) > alertsCap {
		t.alerts = t.alerts[len(t.alerts)-alertsCap:]
	}
}

func dayMarker(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func monthMarker(now time.Time) string {
	return now.UTC().Format("2006-01")
}
