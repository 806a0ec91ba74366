// Package budget tracks character-based generation cost against daily and
// monthly budgets.
//
// Cost accounting is calendar-windowed, not rolling: the daily accumulator
// belongs to one UTC date and the monthly accumulator to one UTC month.
// Resets are lazy: every operation first compares the stored reset markers
// against the clock and zeroes stale accumulators, so no timers run and
// tests control time directly.
//
// The affordability check is a hard precondition: a denied request makes no
// external call and records no cost. Crossing the warning threshold emits a
// one-shot alert per window; crossing the full budget emits an exceeded
// alert and latches the tracker over-budget until the next window reset.
package budget

import "time"

// ReasonBudgetExceeded is the denial reason reported by CanAfford.
const ReasonBudgetExceeded = "budget_exceeded"

// Config contains budget and pricing parameters.
// Zero budgets mean no cap for that window.
type Config struct {
	// DailyBudget is the maximum estimated spend per UTC day, in account
	// currency units.
	DailyBudget float64

	// MonthlyBudget is the maximum estimated spend per UTC month.
	MonthlyBudget float64

	// CostPerThousandChars prices one thousand characters of combined
	// prompt and response text.
	CostPerThousandChars float64

	// WarningThreshold is the budget fraction (0..1) at which a warning
	// alert fires. Default 0.8.
	WarningThreshold float64
}

// Decision is the outcome of an affordability check.
type Decision struct {
	// Allowed indicates whether the estimated cost fits the budgets.
	Allowed bool

	// Reason explains the denial (empty when allowed).
	Reason string
}

// CostRecord is one completed request's cost entry.
type CostRecord struct {
	Cost        float64
	InputChars  int
	OutputChars int
	TotalChars  int
	Priority    string
	Timestamp   time.Time
}

// AlertLevel grades a budget alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// Alert is a budget threshold crossing.
type Alert struct {
	Level     AlertLevel
	Window    string // "daily" or "monthly"
	Ratio     float64
	Message   string
	Timestamp time.Time
}

// Snapshot is a point-in-time view of budget state for the stats surface.
type Snapshot struct {
	TotalCost   float64
	DailyCost   float64
	MonthlyCost float64

	DailyBudget   float64
	MonthlyBudget float64

	DailyRatio   float64
	MonthlyRatio float64

	OverBudget    bool
	BudgetWarning bool

	RecordCount int
	Alerts      []Alert
}
