package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/classify"
	"wander-hq/sherpa/pkg/cli"
	"wander-hq/sherpa/pkg/config"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/generation"
	"wander-hq/sherpa/pkg/limits/quota"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/limits/storage"
	"wander-hq/sherpa/pkg/orchestrator"
	"wander-hq/sherpa/pkg/queue"
	"wander-hq/sherpa/pkg/retention"
	"wander-hq/sherpa/pkg/retry"
	"wander-hq/sherpa/pkg/server"
	"wander-hq/sherpa/pkg/telemetry/logging"
	"wander-hq/sherpa/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sherpa orchestration server",
	Long: `Start the sherpa server with the specified configuration.

The server exposes the generation API, credential administration,
statistics, health, and metrics endpoints on the configured address.

Examples:
  # Start with default config
  sherpa run

  # Start with custom config
  sherpa run --config /etc/sherpa/config.yaml

  # Override listen address
  sherpa run --listen 0.0.0.0:8880

  # Validate config without starting the server
  sherpa run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Sherpa v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Counter store
	var store storage.Store
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err = storage.NewSQLiteStore(storage.SQLiteConfig{Path: cfg.Storage.SQLite.Path})
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open counter store: %w", err))
		}
	default:
		store = storage.NewMemoryStore()
	}
	defer store.Close()
	fmt.Printf("✓ Counter store initialized (%s)\n", cfg.Storage.Backend)

	// Credential pool
	if len(cfg.Credentials.Secrets) == 0 {
		logger.Warn("no credentials configured; requests will fail until one is added")
	}
	pool := credentials.NewPool(cfg.Credentials.Secrets)
	fmt.Printf("✓ Credential pool initialized (%d credentials)\n", len(cfg.Credentials.Secrets))

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.Limits.RequestsPerMinute,
		RequestsPerHour:   cfg.Limits.RequestsPerHour,
	}, store)
	quotas := quota.NewManager(quota.Config{
		DailyQuota:   cfg.Limits.DailyQuota,
		MonthlyQuota: cfg.Limits.MonthlyQuota,
	}, store)
	tracker := budget.NewTracker(budget.Config{
		DailyBudget:          cfg.Budget.Daily,
		MonthlyBudget:        cfg.Budget.Monthly,
		CostPerThousandChars: cfg.Budget.CostPerThousandChars,
		WarningThreshold:     cfg.Budget.WarningThreshold,
	})

	// Request queue
	ctx := cli.SetupSignalHandler()
	proc := queue.NewProcessor(queue.Config{
		MaxConcurrency: cfg.Queue.MaxConcurrency,
		MaxQueueSize:   cfg.Queue.MaxQueueSize,
		BatchSize:      cfg.Queue.BatchSize,
		PollInterval:   cfg.Queue.PollInterval,
	})
	proc.Start(ctx)
	defer proc.Stop()

	// Metrics
	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(metrics.Config{
			Enabled:   true,
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, registry)
		metricsHandler = metrics.Handler(registry)
	}

	gen := generation.NewHTTPClient(generation.HTTPClientConfig{
		BaseURL: cfg.Generation.Endpoint,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout,
	})

	orch, err := orchestrator.New(orchestrator.Deps{
		Generator:   gen,
		Pool:        pool,
		RateLimiter: limiter,
		Quota:       quotas,
		Budget:      tracker,
		Classifier:  classify.New(),
		Retry: retry.NewScheduler(retry.Config{
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			Multiplier: cfg.Retry.Multiplier,
		}),
		Queue:   proc,
		Metrics: collector,
	}, orchestrator.WithTimeout(cfg.Generation.Timeout))
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Orchestrator initialized")

	// Counter retention
	if cfg.Retention.Enabled {
		pruner := retention.NewPruner(store, retention.Config{Schedule: cfg.Retention.Schedule})
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
		}
	}

	// Hot reload of limit, budget, and retry settings
	watcher := config.NewWatcher(cfgFile)
	go func() {
		err := watcher.Watch(ctx, func(next *config.Config) {
			orch.UpdateRateLimitConfig(ratelimit.Config{
				RequestsPerMinute: next.Limits.RequestsPerMinute,
				RequestsPerHour:   next.Limits.RequestsPerHour,
			})
			orch.UpdateQuotaConfig(quota.Config{
				DailyQuota:   next.Limits.DailyQuota,
				MonthlyQuota: next.Limits.MonthlyQuota,
			})
			orch.UpdateCostConfig(budget.Config{
				DailyBudget:          next.Budget.Daily,
				MonthlyBudget:        next.Budget.Monthly,
				CostPerThousandChars: next.Budget.CostPerThousandChars,
				WarningThreshold:     next.Budget.WarningThreshold,
			})
			orch.UpdateRetryConfig(retry.Config{
				BaseDelay:  next.Retry.BaseDelay,
				MaxDelay:   next.Retry.MaxDelay,
				Multiplier: next.Retry.Multiplier,
			})
		})
		if err != nil {
			logger.Warn("config watcher exited", "error", err)
		}
	}()

	srvOpts := []server.Option{server.WithLogger(logger)}
	if metricsHandler != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(metricsHandler))
	}
	if len(cfg.Server.AdminTokens) > 0 {
		srvOpts = append(srvOpts, server.WithAdminTokens(cfg.Server.AdminTokens))
	}
	srv := server.New(server.Config{
		ListenAddress:   cfg.Server.ListenAddress,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orch, srvOpts...)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Server stopped")
	return nil
}
