// Package orchestrator is the façade over the generation pipeline.
//
// One request flows: credential selection → rate limit and quota checks →
// budget precondition → time-boxed generation call → response validation →
// bookkeeping. Failures are classified and drive the retry loop: switch
// credential, back off, retry immediately, or give up, depending on the
// error type. Callers see either generated text or one typed error;
// credential switching and retries are invisible except through the
// statistics surfaces.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/classify"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/generation"
	"wander-hq/sherpa/pkg/limits/quota"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/queue"
	"wander-hq/sherpa/pkg/retry"
	"wander-hq/sherpa/pkg/telemetry/metrics"
)

const (
	// defaultTimeout bounds one generation attempt.
	defaultTimeout = 30 * time.Second

	// defaultExpectedResponseChars seeds the pre-call cost estimate when
	// the caller gives no hint about response length.
	defaultExpectedResponseChars = 500

	// probePrompt is sent once when validating a newly added credential.
	probePrompt = "Reply with the single word: ready"
)

// Options tune one request.
type Options struct {
	// MaxRetries caps attempts. Zero means one attempt per credential.
	MaxRetries int

	// Priority routes queued submissions and labels cost records.
	Priority queue.Priority

	// DisableTimeout removes the per-attempt time box.
	DisableTimeout bool

	// ExpectedResponseChars refines the pre-call cost estimate. Zero uses
	// the default.
	ExpectedResponseChars int
}

// Deps are the collaborating components. All fields are required except
// Queue (only needed for GenerateContentWithQueue) and Metrics.
type Deps struct {
	Generator   generation.Generator
	Pool        *credentials.Pool
	RateLimiter *ratelimit.Limiter
	Quota       *quota.Manager
	Budget      *budget.Tracker
	Classifier  *classify.Classifier
	Retry       *retry.Scheduler
	Queue       *queue.Processor
	Metrics     *metrics.Collector
}

// Orchestrator coordinates credentials, limits, budget, and retries around
// the generation endpoint. Safe for concurrent use; concurrent direct
// callers race for credentials and limit slots.
type Orchestrator struct {
	gen        generation.Generator
	pool       *credentials.Pool
	rate       *ratelimit.Limiter
	quota      *quota.Manager
	budget     *budget.Tracker
	classifier *classify.Classifier
	retries    *retry.Scheduler
	proc       *queue.Processor
	collector  *metrics.Collector

	timeout time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-attempt time box. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the request-flow logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the time source used for request duration metrics.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep overrides how backoff delays are awaited. Tests substitute a
// recorder to avoid real waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New builds an Orchestrator from its collaborators.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("orchestrator: nil generator")
	case deps.Pool == nil:
		return nil, errors.New("orchestrator: nil credential pool")
	case deps.RateLimiter == nil:
		return nil, errors.New("orchestrator: nil rate limiter")
	case deps.Quota == nil:
		return nil, errors.New("orchestrator: nil quota manager")
	case deps.Budget == nil:
		return nil, errors.New("orchestrator: nil budget tracker")
	case deps.Classifier == nil:
		return nil, errors.New("orchestrator: nil classifier")
	case deps.Retry == nil:
		return nil, errors.New("orchestrator: nil retry scheduler")
	}
	o := &Orchestrator{
		gen:        deps.Generator,
		pool:       deps.Pool,
		rate:       deps.RateLimiter,
		quota:      deps.Quota,
		budget:     deps.Budget,
		classifier: deps.Classifier,
		retries:    deps.Retry,
		proc:       deps.Queue,
		collector:  deps.Metrics,
		timeout:    defaultTimeout,
		now:        time.Now,
		sleep:      sleepContext,
		logger:     slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GenerateContent produces text for prompt, rotating credentials and
// retrying transient failures.
//
// It returns the generated text, or one typed error: ErrEmptyPrompt,
// *BudgetExceededError, *NoCredentialsError, *RequestError for
// non-retryable failures, and *AllRateLimitedError,
// *AllQuotaExceededError, or *ExhaustedError when every attempt failed.
func (o *Orchestrator) GenerateContent(ctx context.Context, prompt string, opts *Options) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if opts == nil {
		opts = &Options{}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.pool.Len()
		if maxRetries <= 0 {
			maxRetries = 1
		}
	}
	expected := opts.ExpectedResponseChars
	if expected <= 0 {
		expected = defaultExpectedResponseChars
	}

	started := o.now()
	excluded := make(map[string]bool)
	var records []*classify.Record

	for attempt := 0; attempt < maxRetries; attempt++ {
		cand, err := o.pool.SelectCandidate(excluded)
		if err != nil {
			o.finish("no_credentials", started, 0, 0, 0)
			return "", &NoCredentialsError{Err: err}
		}

		if res := o.rate.Check(ctx, cand.ID); !res.Allowed {
			records = append(records, o.denyAttempt(cand.ID, excluded,
				credentials.StatusRateLimited,
				fmt.Errorf("rate limit exceeded: %s (%d/%d)", res.Reason, res.Current, res.Limit)))
			continue
		}
		if res := o.quota.Check(ctx, cand.ID); !res.Allowed {
			records = append(records, o.denyAttempt(cand.ID, excluded,
				credentials.StatusQuotaExceeded,
				fmt.Errorf("quota exceeded: %s (%d/%d)", res.Reason, res.Current, res.Limit)))
			continue
		}

		estimate := o.budget.EstimateCost(prompt, expected)
		if decision := o.budget.CanAfford(estimate); !decision.Allowed {
			o.logger.Warn("request denied by budget guard",
				"reason", decision.Reason, "estimate", estimate)
			o.finish("budget_exceeded", started, 0, 0, 0)
			return "", &BudgetExceededError{Reason: decision.Reason, Estimate: estimate}
		}

		text, attemptErr := o.attempt(ctx, cand, prompt, opts.DisableTimeout)
		if attemptErr == nil {
			o.rate.Increment(ctx, cand.ID)
			o.quota.Increment(ctx, cand.ID)
			cost := o.budget.Record(len(prompt), len(text), opts.Priority.String())
			if err := o.pool.RecordOutcome(cand.ID, true, "", false); err != nil {
				o.logger.Warn("recording success outcome failed", "error", err)
			}
			o.logger.Info("generation succeeded",
				"credential_id", cand.ID, "attempt", attempt, "output_chars", len(text))
			o.finish("success", started, len(prompt), len(text), cost)
			return text, nil
		}

		record := o.classifier.Classify(attemptErr, cand.ID)
		records = append(records, record)
		o.collector.RecordAttemptError(string(record.Type))

		authFailure := record.Type == classify.TypeAuthentication
		if err := o.pool.RecordOutcome(cand.ID, false, record.Message, authFailure); err != nil {
			o.logger.Warn("recording failure outcome failed", "error", err)
		}

		if !record.Retryable {
			o.finish("rejected", started, 0, 0, 0)
			return "", &RequestError{Record: record, Err: attemptErr}
		}

		o.markForStrategy(cand.ID, record, excluded)

		if record.Strategy == classify.StrategyBackoff && attempt+1 < maxRetries {
			delay := o.retries.DelayFor(attempt, record.Type)
			o.collector.RecordRetryDelay(delay)
			o.logger.Info("backing off before retry",
				"credential_id", cand.ID, "error_type", string(record.Type),
				"attempt", attempt, "delay", delay.String())
			if err := o.sleep(ctx, delay); err != nil {
				o.finish("cancelled", started, 0, 0, 0)
				return "", err
			}
		}
	}

	o.finish("error", started, 0, 0, 0)
	return "", aggregate(maxRetries, records)
}

// attempt runs one time-boxed generation call and validates the response.
func (o *Orchestrator) attempt(ctx context.Context, cand *credentials.Candidate, prompt string, disableTimeout bool) (string, error) {
	callCtx := ctx
	if !disableTimeout {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result, err := o.gen.Generate(callCtx, cand.Secret, prompt)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", errors.New("empty response from generation endpoint")
	}
	if result.Blocked() {
		return "", fmt.Errorf("content blocked by safety policy: %s", result.BlockReason)
	}
	if result.Text == "" {
		return "", errors.New("empty response from generation endpoint")
	}
	return result.Text, nil
}

// denyAttempt handles a rate or quota denial: the credential is marked,
// excluded for the rest of this call, and the denial is classified. No
// external call happens and no counter moves.
func (o *Orchestrator) denyAttempt(id string, excluded map[string]bool, status credentials.Status, cause error) *classify.Record {
	if err := o.pool.SetStatus(id, status); err != nil {
		o.logger.Warn("marking credential failed", "credential_id", id, "error", err)
	}
	excluded[id] = true
	record := o.classifier.Classify(cause, id)
	o.collector.RecordAttemptError(string(record.Type))
	return record
}

// markForStrategy applies a classified failure's recovery strategy to the
// credential. Immediate-retry failures leave the credential in place so
// the next attempt may reuse it; everything else rotates away from it.
func (o *Orchestrator) markForStrategy(id string, record *classify.Record, excluded map[string]bool) {
	switch record.Strategy {
	case classify.StrategyImmediateRetry:
		return
	case classify.StrategySwitchKey:
		switch record.Type {
		case classify.TypeRateLimit:
			o.setStatus(id, credentials.StatusRateLimited)
		case classify.TypeAPIQuota:
			o.setStatus(id, credentials.StatusQuotaExceeded)
		}
		// Authentication failures are already errored by the outcome
		// recording.
	case classify.StrategyBackoff:
		o.setStatus(id, credentials.StatusError)
	}
	excluded[id] = true
}

func (o *Orchestrator) setStatus(id string, status credentials.Status) {
	if err := o.pool.SetStatus(id, status); err != nil {
		o.logger.Warn("marking credential failed", "credential_id", id, "error", err)
	}
}

// finish publishes per-request metrics.
func (o *Orchestrator) finish(status string, started time.Time, inputChars, outputChars int, cost float64) {
	o.collector.RecordRequest(status, o.now().Sub(started), inputChars, outputChars, cost)
}

// aggregate folds per-attempt failures into the final error.
func aggregate(attempts int, records []*classify.Record) error {
	if len(records) > 0 {
		allRate, allQuota := true, true
		for _, r := range records {
			if r.Type != classify.TypeRateLimit {
				allRate = false
			}
			if r.Type != classify.TypeAPIQuota {
				allQuota = false
			}
		}
		if allRate {
			return &AllRateLimitedError{Attempts: attempts}
		}
		if allQuota {
			return &AllQuotaExceededError{Attempts: attempts}
		}
	}
	return &ExhaustedError{Attempts: attempts, Records: records}
}
