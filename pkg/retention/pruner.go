// Package retention runs scheduled cleanup of the counter store.
//
// Counter entries carry TTLs and are ignored once expired, but expired rows
// stay on disk (or in memory) until something sweeps them. The pruner runs
// Store.Cleanup on a cron schedule so long-lived deployments do not
// accumulate dead minute and hour buckets.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"wander-hq/sherpa/pkg/limits/storage"
)

// Config contains the pruner schedule.
type Config struct {
	// Schedule is a cron expression for cleanup runs.
	// Example: "0 * * * *" (hourly). Empty disables scheduling.
	Schedule string
}

// Pruner sweeps expired counters from the store.
type Pruner struct {
	store  storage.Store
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithLogger sets the pruner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) { p.logger = logger }
}

// NewPruner creates a pruner over the given store.
func NewPruner(store storage.Store, cfg Config, opts ...Option) *Pruner {
	p := &Pruner{
		store:  store,
		cfg:    cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "retention"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prune runs one cleanup pass and returns the number of removed entries.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	removed, err := p.store.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("retention: cleanup failed: %w", err)
	}
	p.logger.Info("counter cleanup finished", "removed", removed)
	return removed, nil
}

// Start schedules pruning per the configured cron expression and returns.
// The schedule stops when ctx is cancelled. An empty schedule is a no-op.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("retention: scheduler already running")
	}
	if p.cfg.Schedule == "" {
		p.logger.Info("cleanup schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.cfg.Schedule); err != nil {
		return fmt.Errorf("retention: invalid cron schedule %q: %w", p.cfg.Schedule, err)
	}
	if _, err := p.cron.AddFunc(p.cfg.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("retention: failed to schedule cleanup: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("retention scheduler started", "schedule", p.cfg.Schedule)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts the schedule. In-flight cleanup finishes.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}
