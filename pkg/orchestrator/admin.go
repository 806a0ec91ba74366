package orchestrator

import (
	"context"
	"fmt"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/limits/quota"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/queue"
	"wander-hq/sherpa/pkg/retry"
)

// AddCredential validates a secret with a live probe call and, on success,
// adds it to the pool and returns its ID. The probe runs under the normal
// per-attempt time box and consumes no rate-limit or quota budget.
func (o *Orchestrator) AddCredential(ctx context.Context, secret string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.gen.Generate(probeCtx, secret, probePrompt)
	if err != nil {
		record := o.classifier.Classify(err, "")
		o.logger.Warn("credential validation probe failed",
			"error_type", string(record.Type), "error", err)
		return "", fmt.Errorf("orchestrator: credential validation failed: %w", err)
	}
	if result == nil || result.Blocked() || result.Text == "" {
		return "", fmt.Errorf("orchestrator: credential validation failed: unusable probe response")
	}

	id, err := o.pool.Add(secret)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveCredential removes a credential from the pool.
func (o *Orchestrator) RemoveCredential(id string) error {
	return o.pool.Remove(id)
}

// SetCredentialStatus forces a credential's status. The only way to
// disable or re-enable a credential.
func (o *Orchestrator) SetCredentialStatus(id string, status credentials.Status) error {
	return o.pool.SetStatus(id, status)
}

// ResetStatistics zeroes all per-credential counters and the classifier's
// error history. Budget accounting is left alone; use ResetBudget for that.
func (o *Orchestrator) ResetStatistics() {
	if err := o.pool.ResetStatistics(""); err != nil {
		o.logger.Warn("resetting credential statistics failed", "error", err)
	}
	o.classifier.Reset()
	o.logger.Info("statistics reset")
}

// ResetBudget zeroes the cost accounting.
func (o *Orchestrator) ResetBudget() {
	o.budget.Reset()
	o.logger.Info("budget reset")
}

// GetCredentialStatistics returns a snapshot of every credential.
func (o *Orchestrator) GetCredentialStatistics() []credentials.Stats {
	return o.pool.Statistics()
}

// HealthStatus is the rolled-up health view.
type HealthStatus struct {
	Healthy bool

	TotalCredentials  int
	UsableCredentials int
	StatusCounts      map[credentials.Status]int

	OverBudget   bool
	DailyRatio   float64
	MonthlyRatio float64

	QueueBacklog  int
	QueueInFlight int
}

// GetHealthStatus rolls credentials, budget, and queue state into one
// health view and refreshes the corresponding gauges.
func (o *Orchestrator) GetHealthStatus() HealthStatus {
	counts := o.pool.CountByStatus()
	usable := 0
	total := 0
	for status, n := range counts {
		total += n
		if status != credentials.StatusDisabled {
			usable += n
		}
		o.collector.SetCredentialCount(string(status), n)
	}

	snap := o.budget.Snapshot()
	o.collector.SetBudgetRatio("daily", snap.DailyRatio)
	o.collector.SetBudgetRatio("monthly", snap.MonthlyRatio)

	h := HealthStatus{
		Healthy:           usable > 0 && !snap.OverBudget,
		TotalCredentials:  total,
		UsableCredentials: usable,
		StatusCounts:      counts,
		OverBudget:        snap.OverBudget,
		DailyRatio:        snap.DailyRatio,
		MonthlyRatio:      snap.MonthlyRatio,
	}
	if o.proc != nil {
		qs := o.proc.Stats()
		for priority, n := range qs.Pending {
			h.QueueBacklog += n
			o.collector.SetQueueDepth(priority, n)
		}
		h.QueueInFlight = qs.InFlight
		o.collector.SetQueueInFlight(qs.InFlight)
	}
	return h
}

// GetCostStatistics returns the budget tracker's snapshot.
func (o *Orchestrator) GetCostStatistics() budget.Snapshot {
	return o.budget.Snapshot()
}

// GetQueueStatistics returns the queue processor's snapshot. The zero
// snapshot is returned when no queue is configured.
func (o *Orchestrator) GetQueueStatistics() queue.Snapshot {
	if o.proc == nil {
		return queue.Snapshot{}
	}
	return o.proc.Stats()
}

// UpdateRateLimitConfig replaces the rate limiter's configuration. Takes
// effect on the next check; counters already accumulated keep counting.
func (o *Orchestrator) UpdateRateLimitConfig(cfg ratelimit.Config) {
	o.rate.UpdateConfig(cfg)
	o.logger.Info("rate limit config updated",
		"requests_per_minute", cfg.RequestsPerMinute, "requests_per_hour", cfg.RequestsPerHour)
}

// UpdateQuotaConfig replaces the quota manager's configuration.
func (o *Orchestrator) UpdateQuotaConfig(cfg quota.Config) {
	o.quota.UpdateConfig(cfg)
	o.logger.Info("quota config updated",
		"daily_quota", cfg.DailyQuota, "monthly_quota", cfg.MonthlyQuota)
}

// UpdateCostConfig replaces budgets and pricing. Raising a budget clears
// the over-budget latch if spend now fits.
func (o *Orchestrator) UpdateCostConfig(cfg budget.Config) {
	o.budget.UpdateConfig(cfg)
	o.logger.Info("cost config updated",
		"daily_budget", cfg.DailyBudget, "monthly_budget", cfg.MonthlyBudget,
		"cost_per_thousand_chars", cfg.CostPerThousandChars)
}

// UpdateRetryConfig replaces the retry scheduler's delay parameters.
func (o *Orchestrator) UpdateRetryConfig(cfg retry.Config) {
	o.retries.UpdateConfig(cfg)
	o.logger.Info("retry config updated",
		"base_delay", cfg.BaseDelay.String(), "max_delay", cfg.MaxDelay.String(),
		"multiplier", cfg.Multiplier)
}
