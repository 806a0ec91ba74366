package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/classify"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/generation"
	"wander-hq/sherpa/pkg/limits/quota"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/limits/storage"
	"wander-hq/sherpa/pkg/retry"
)

// harness bundles an orchestrator with its collaborators so tests can
// inspect state after a call.
type harness struct {
	orch    *Orchestrator
	gen     *generation.Mock
	pool    *credentials.Pool
	limiter *ratelimit.Limiter
	quotas  *quota.Manager
	tracker *budget.Tracker
	slept   *[]time.Duration
}

type harnessConfig struct {
	secrets  []string
	rate     ratelimit.Config
	quota    quota.Config
	budget   budget.Config
	retry    retry.Config
	steps    []generation.MockStep
	orchOpts []Option
}

func newHarness(t *testing.T, hc harnessConfig) *harness {
	t.Helper()
	if hc.secrets == nil {
		hc.secrets = []string{"key-a"}
	}
	if hc.budget.CostPerThousandChars == 0 {
		hc.budget.CostPerThousandChars = 1.0
	}
	if hc.retry.BaseDelay == 0 {
		hc.retry = retry.Config{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	}

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	gen := generation.NewMock(hc.steps...)
	pool := credentials.NewPool(hc.secrets)
	limiter := ratelimit.NewLimiter(hc.rate, store)
	quotas := quota.NewManager(hc.quota, store)
	tracker := budget.NewTracker(hc.budget)

	slept := &[]time.Duration{}
	opts := append([]Option{
		WithSleep(func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		}),
	}, hc.orchOpts...)

	orch, err := New(Deps{
		Generator:   gen,
		Pool:        pool,
		RateLimiter: limiter,
		Quota:       quotas,
		Budget:      tracker,
		Classifier:  classify.New(),
		Retry:       retry.NewScheduler(hc.retry),
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{
		orch: orch, gen: gen, pool: pool,
		limiter: limiter, quotas: quotas, tracker: tracker, slept: slept,
	}
}

func ok(text string) generation.MockStep {
	return generation.MockStep{Result: &generation.Result{Text: text, FinishReason: "STOP"}}
}

func fail(err error) generation.MockStep {
	return generation.MockStep{Err: err}
}

// ============================================================
// Direct generation
// ============================================================

func TestGenerateContent_Success(t *testing.T) {
	h := newHarness(t, harnessConfig{steps: []generation.MockStep{ok("the summit route")}})

	text, err := h.orch.GenerateContent(context.Background(), "describe the summit route", nil)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "the summit route" {
		t.Fatalf("text = %q", text)
	}

	s := h.pool.Statistics()[0]
	if s.TotalRequests != 1 || s.SuccessfulRequests != 1 || s.FailedRequests != 0 {
		t.Errorf("credential stats = %+v, want 1/1/0", s)
	}
	if snap := h.tracker.Snapshot(); snap.TotalCost <= 0 {
		t.Errorf("TotalCost = %v, want > 0", snap.TotalCost)
	}
	if minute, _ := h.limiter.Usage(context.Background(), s.ID); minute != 1 {
		t.Errorf("minute usage = %d, want 1", minute)
	}
}

func TestGenerateContent_EmptyPrompt(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	if _, err := h.orch.GenerateContent(context.Background(), "", nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("err = %v, want ErrEmptyPrompt", err)
	}
	if h.gen.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0", h.gen.CallCount())
	}
}

func TestGenerateContent_GenericFailuresExhaustAllCredentials(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a", "key-b", "key-c"},
		steps:   []generation.MockStep{fail(errors.New("upstream temporarily overloaded"))},
	})

	_, err := h.orch.GenerateContent(context.Background(), "hello", nil)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 || len(exhausted.Records) != 3 {
		t.Fatalf("attempts = %d, records = %d, want 3/3", exhausted.Attempts, len(exhausted.Records))
	}
	for _, r := range exhausted.Records {
		if r.Type != classify.TypeGeneric {
			t.Errorf("record type = %s, want GENERIC", r.Type)
		}
	}

	if h.gen.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", h.gen.CallCount())
	}
	for _, s := range h.pool.Statistics() {
		if s.Status != credentials.StatusError {
			t.Errorf("credential %s status = %s, want error", s.ID, s.Status)
		}
	}
	// No backoff after the final attempt.
	if len(*h.slept) != 2 {
		t.Errorf("backoff sleeps = %d, want 2", len(*h.slept))
	}
}

func TestGenerateContent_SwitchesCredentialOnAuthFailure(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a", "key-b"},
		steps: []generation.MockStep{
			fail(&generation.APIError{StatusCode: 401, Message: "invalid API key"}),
			ok("made it"),
		},
	})

	text, err := h.orch.GenerateContent(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "made it" {
		t.Fatalf("text = %q", text)
	}

	calls := h.gen.Calls()
	if len(calls) != 2 || calls[0].Credential == calls[1].Credential {
		t.Fatalf("calls = %+v, want two distinct credentials", calls)
	}
	errored := 0
	for _, s := range h.pool.Statistics() {
		if s.Status == credentials.StatusError {
			errored++
		}
	}
	if errored != 1 {
		t.Errorf("errored credentials = %d, want 1", errored)
	}
	// Auth failures switch keys without backing off.
	if len(*h.slept) != 0 {
		t.Errorf("backoff sleeps = %d, want 0", len(*h.slept))
	}
}

func TestGenerateContent_AllRateLimited(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a", "key-b"},
		rate:    ratelimit.Config{RequestsPerMinute: 1},
	})
	ctx := context.Background()
	for _, s := range h.pool.Statistics() {
		h.limiter.Increment(ctx, s.ID)
	}

	_, err := h.orch.GenerateContent(ctx, "hello", nil)
	var allLimited *AllRateLimitedError
	if !errors.As(err, &allLimited) {
		t.Fatalf("err = %v, want *AllRateLimitedError", err)
	}
	if allLimited.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", allLimited.Attempts)
	}
	if h.gen.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0: denied attempts must not reach the endpoint", h.gen.CallCount())
	}
	for _, s := range h.pool.Statistics() {
		if s.Status != credentials.StatusRateLimited {
			t.Errorf("credential %s status = %s, want rate_limited", s.ID, s.Status)
		}
		if s.TotalRequests != 0 {
			t.Errorf("credential %s TotalRequests = %d, want 0", s.ID, s.TotalRequests)
		}
	}
}

func TestGenerateContent_AllQuotaExceeded(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a"},
		quota:   quota.Config{DailyQuota: 1},
	})
	ctx := context.Background()
	h.quotas.Increment(ctx, h.pool.Statistics()[0].ID)

	_, err := h.orch.GenerateContent(ctx, "hello", nil)
	var allQuota *AllQuotaExceededError
	if !errors.As(err, &allQuota) {
		t.Fatalf("err = %v, want *AllQuotaExceededError", err)
	}
	if status, _ := h.pool.Status(h.pool.Statistics()[0].ID); status != credentials.StatusQuotaExceeded {
		t.Errorf("status = %s, want quota_exceeded", status)
	}
}

func TestGenerateContent_BudgetDeniedBeforeAnyCall(t *testing.T) {
	h := newHarness(t, harnessConfig{
		budget: budget.Config{DailyBudget: 1.0, CostPerThousandChars: 1.0},
	})
	// Spend 0.95 of the 1.0 daily budget.
	h.tracker.Record(950, 0, "medium")

	prompt := make([]byte, 50)
	for i := range prompt {
		prompt[i] = 'x'
	}
	_, err := h.orch.GenerateContent(context.Background(), string(prompt), &Options{ExpectedResponseChars: 50})
	var denied *BudgetExceededError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *BudgetExceededError", err)
	}
	if denied.Reason != budget.ReasonBudgetExceeded {
		t.Errorf("Reason = %q, want %q", denied.Reason, budget.ReasonBudgetExceeded)
	}

	if h.gen.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0", h.gen.CallCount())
	}
	s := h.pool.Statistics()[0]
	if s.TotalRequests != 0 || s.Status != credentials.StatusActive {
		t.Errorf("credential touched by budget denial: %+v", s)
	}
}

func TestGenerateContent_ContentPolicyNotRetried(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a", "key-b"},
		steps: []generation.MockStep{
			{Result: &generation.Result{BlockReason: "SAFETY"}},
		},
	})

	_, err := h.orch.GenerateContent(context.Background(), "something off limits", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
	if reqErr.Record.Type != classify.TypeContentPolicy {
		t.Errorf("type = %s, want CONTENT_POLICY", reqErr.Record.Type)
	}
	if h.gen.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1: content policy failures must not retry", h.gen.CallCount())
	}
}

func TestGenerateContent_EmptyResponseRetriesImmediately(t *testing.T) {
	h := newHarness(t, harnessConfig{
		steps: []generation.MockStep{
			{Result: &generation.Result{Text: ""}},
			ok("second time lucky"),
		},
	})

	text, err := h.orch.GenerateContent(context.Background(), "hello", &Options{MaxRetries: 2})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "second time lucky" {
		t.Fatalf("text = %q", text)
	}
	if h.gen.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2", h.gen.CallCount())
	}
	if len(*h.slept) != 0 {
		t.Errorf("backoff sleeps = %d, want 0 for immediate retry", len(*h.slept))
	}
}

func TestGenerateContent_TimeoutClassified(t *testing.T) {
	h := newHarness(t, harnessConfig{
		secrets: []string{"key-a"},
		steps:   []generation.MockStep{fail(context.DeadlineExceeded)},
	})

	_, err := h.orch.GenerateContent(context.Background(), "hello", nil)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Records[0].Type != classify.TypeTimeout {
		t.Errorf("type = %s, want TIMEOUT", exhausted.Records[0].Type)
	}
}
