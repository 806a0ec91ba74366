package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/classify"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/generation"
	"wander-hq/sherpa/pkg/limits/quota"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/limits/storage"
	"wander-hq/sherpa/pkg/orchestrator"
	"wander-hq/sherpa/pkg/retry"
)

// newTestServer wires a Server over an orchestrator backed by a scripted
// generator. The returned handler is exercised directly with httptest.
func newTestServer(t *testing.T, secrets []string, steps ...generation.MockStep) (http.Handler, *credentials.Pool) {
	t.Helper()
	return newTestServerOpts(t, secrets, nil, steps...)
}

func newTestServerWithAuth(t *testing.T, tokens []string) (http.Handler, *credentials.Pool) {
	t.Helper()
	return newTestServerOpts(t, nil, []Option{WithAdminTokens(tokens)})
}

func newTestServerOpts(t *testing.T, secrets []string, opts []Option, steps ...generation.MockStep) (http.Handler, *credentials.Pool) {
	t.Helper()
	if secrets == nil {
		secrets = []string{"key-a"}
	}

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	pool := credentials.NewPool(secrets)
	orch, err := orchestrator.New(orchestrator.Deps{
		Generator:   generation.NewMock(steps...),
		Pool:        pool,
		RateLimiter: ratelimit.NewLimiter(ratelimit.Config{}, store),
		Quota:       quota.NewManager(quota.Config{}, store),
		Budget:      budget.NewTracker(budget.Config{CostPerThousandChars: 1.0}),
		Classifier:  classify.New(),
		Retry:       retry.NewScheduler(retry.Config{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	srv := New(Config{ListenAddress: "127.0.0.1:0"}, orch, opts...)
	return srv.Routes(), pool
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

// ============================================================
// Generation
// ============================================================

func TestHandleGenerate_Success(t *testing.T) {
	h, _ := newTestServer(t, nil,
		generation.MockStep{Result: &generation.Result{Text: "three hidden viewpoints", FinishReason: "STOP"}})

	rec := doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":"viewpoints near the old town"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[generateResponse](t, rec)
	if resp.Text != "three hidden viewpoints" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestHandleGenerate_EmptyPrompt(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Kind != "empty_prompt" {
		t.Errorf("kind = %q, want empty_prompt", resp.Kind)
	}
}

func TestHandleGenerate_MalformedBody(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGenerate_ExhaustedIsBadGateway(t *testing.T) {
	h, _ := newTestServer(t, []string{"key-a"},
		generation.MockStep{Err: errors.New("upstream temporarily overloaded")})

	rec := doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":"hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Kind != "exhausted" {
		t.Errorf("kind = %q, want exhausted", resp.Kind)
	}
}

func TestHandleGenerate_ContentPolicyUsesErrorType(t *testing.T) {
	h, _ := newTestServer(t, nil,
		generation.MockStep{Result: &generation.Result{BlockReason: "SAFETY"}})

	rec := doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":"hello"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Kind != string(classify.TypeContentPolicy) {
		t.Errorf("kind = %q, want %s", resp.Kind, classify.TypeContentPolicy)
	}
}

// ============================================================
// Credential administration
// ============================================================

func TestCredentialEndpoints(t *testing.T) {
	h, pool := newTestServer(t, []string{"key-a"})

	rec := doJSON(t, h, http.MethodGet, "/v1/credentials", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	stats := decodeBody[[]credentials.Stats](t, rec)
	if len(stats) != 1 {
		t.Fatalf("credentials = %d, want 1", len(stats))
	}
	id := stats[0].ID

	rec = doJSON(t, h, http.MethodPut, "/v1/credentials/"+id+"/status", `{"status":"disabled"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if counts := pool.CountByStatus(); counts[credentials.StatusDisabled] != 1 {
		t.Errorf("disabled count = %d, want 1", counts[credentials.StatusDisabled])
	}

	rec = doJSON(t, h, http.MethodPut, "/v1/credentials/"+id+"/status", `{"status":"hibernating"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/credentials/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/v1/credentials/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleAddCredential(t *testing.T) {
	// The scripted step answers the validation probe.
	h, pool := newTestServer(t, []string{"key-a"},
		generation.MockStep{Result: &generation.Result{Text: "ready", FinishReason: "STOP"}})

	rec := doJSON(t, h, http.MethodPost, "/v1/credentials", `{"secret":"key-b"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[map[string]string](t, rec)
	if created["id"] == "" {
		t.Error("response missing credential id")
	}
	if got := len(pool.Statistics()); got != 2 {
		t.Errorf("pool size = %d, want 2", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/credentials", `{"secret":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty secret status = %d, want 400", rec.Code)
	}
}

func TestHandleAddCredential_ProbeFailure(t *testing.T) {
	h, pool := newTestServer(t, []string{"key-a"},
		generation.MockStep{Err: errors.New("API key not valid")})

	rec := doJSON(t, h, http.MethodPost, "/v1/credentials", `{"secret":"key-bad"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if got := len(pool.Statistics()); got != 1 {
		t.Errorf("pool size = %d, want 1", got)
	}
}

// ============================================================
// Statistics, health, config
// ============================================================

func TestHandleHealth(t *testing.T) {
	h, pool := newTestServer(t, []string{"key-a"})

	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	health := decodeBody[orchestrator.HealthStatus](t, rec)
	if !health.Healthy || health.UsableCredentials != 1 {
		t.Errorf("health = %+v, want healthy with 1 usable credential", health)
	}

	id := pool.Statistics()[0].ID
	if err := pool.SetStatus(id, credentials.StatusDisabled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	rec = doJSON(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with all credentials disabled", rec.Code)
	}
}

func TestHandleCostsAndReset(t *testing.T) {
	h, _ := newTestServer(t, nil,
		generation.MockStep{Result: &generation.Result{Text: "a long enough answer", FinishReason: "STOP"}})

	doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":"hello"}`)

	rec := doJSON(t, h, http.MethodGet, "/v1/costs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("costs status = %d", rec.Code)
	}
	snap := decodeBody[budget.Snapshot](t, rec)
	if snap.TotalCost <= 0 || snap.RecordCount != 1 {
		t.Errorf("snapshot = %+v, want one recorded cost", snap)
	}

	if rec := doJSON(t, h, http.MethodPost, "/v1/statistics/reset", ""); rec.Code != http.StatusNoContent {
		t.Errorf("reset status = %d, want 204", rec.Code)
	}
}

func TestHandleUpdateConfigs(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodPut, "/v1/config/ratelimit", `{"RequestsPerMinute":5,"RequestsPerHour":100}`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("ratelimit update status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPut, "/v1/config/budget", `{"DailyBudget":2.5,"CostPerThousandChars":0.5}`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("budget update status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPut, "/v1/config/budget", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed budget update status = %d, want 400", rec.Code)
	}
}

func TestHandleQueue_NoProcessor(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("queue status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/generate", `{"prompt":"hello","queued":true}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("queued generate without processor status = %d, want 500", rec.Code)
	}
}
