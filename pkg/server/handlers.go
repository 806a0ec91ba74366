package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"wander-hq/sherpa/pkg/budget"
	"wander-hq/sherpa/pkg/credentials"
	"wander-hq/sherpa/pkg/limits/ratelimit"
	"wander-hq/sherpa/pkg/orchestrator"
	"wander-hq/sherpa/pkg/queue"
)

// Routes builds the request multiplexer. The /v1 API is token-guarded
// when admin tokens are configured; health and metrics stay open.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	guard := func(h http.HandlerFunc) http.Handler {
		if s.auth == nil {
			return h
		}
		return s.auth.wrap(h)
	}

	mux.Handle("POST /v1/generate", guard(s.handleGenerate))

	mux.Handle("GET /v1/credentials", guard(s.handleListCredentials))
	mux.Handle("POST /v1/credentials", guard(s.handleAddCredential))
	mux.Handle("DELETE /v1/credentials/{id}", guard(s.handleRemoveCredential))
	mux.Handle("PUT /v1/credentials/{id}/status", guard(s.handleSetCredentialStatus))

	mux.Handle("POST /v1/statistics/reset", guard(s.handleResetStatistics))
	mux.Handle("GET /v1/costs", guard(s.handleCosts))
	mux.Handle("GET /v1/queue", guard(s.handleQueue))
	mux.Handle("PUT /v1/config/ratelimit", guard(s.handleUpdateRateLimit))
	mux.Handle("PUT /v1/config/budget", guard(s.handleUpdateBudget))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

type generateRequest struct {
	Prompt                string `json:"prompt"`
	Priority              string `json:"priority"`
	Queued                bool   `json:"queued"`
	MaxRetries            int    `json:"max_retries"`
	ExpectedResponseChars int    `json:"expected_response_chars"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	opts := &orchestrator.Options{
		MaxRetries:            req.MaxRetries,
		Priority:              queue.ParsePriority(req.Priority),
		ExpectedResponseChars: req.ExpectedResponseChars,
	}

	var text string
	var err error
	if req.Queued {
		var out <-chan orchestrator.Outcome
		out, err = s.orch.GenerateContentWithQueue(r.Context(), req.Prompt, opts)
		if err == nil {
			outcome := <-out
			text, err = outcome.Text, outcome.Err
		}
	} else {
		text, err = s.orch.GenerateContent(r.Context(), req.Prompt, opts)
	}
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Text: text})
}

// writeGenerationError maps the orchestrator's typed errors onto HTTP
// statuses.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	var (
		budgetErr    *orchestrator.BudgetExceededError
		noCredsErr   *orchestrator.NoCredentialsError
		rateErr      *orchestrator.AllRateLimitedError
		quotaErr     *orchestrator.AllQuotaExceededError
		requestErr   *orchestrator.RequestError
		exhaustedErr *orchestrator.ExhaustedError
	)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "empty_prompt", err.Error())
	case errors.As(err, &budgetErr):
		writeError(w, http.StatusTooManyRequests, "budget_exceeded", err.Error())
	case errors.As(err, &noCredsErr):
		writeError(w, http.StatusServiceUnavailable, "no_credentials", err.Error())
	case errors.As(err, &rateErr):
		writeError(w, http.StatusTooManyRequests, "all_rate_limited", err.Error())
	case errors.As(err, &quotaErr):
		writeError(w, http.StatusTooManyRequests, "all_quota_exceeded", err.Error())
	case errors.As(err, &requestErr):
		writeError(w, http.StatusBadRequest, string(requestErr.Record.Type), err.Error())
	case errors.As(err, &exhaustedErr):
		writeError(w, http.StatusBadGateway, "exhausted", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetCredentialStatistics())
}

type addCredentialRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	var req addCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "secret is required")
		return
	}
	id, err := s.orch.AddCredential(r.Context(), req.Secret)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleRemoveCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RemoveCredential(r.PathValue("id")); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetCredentialStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	status := credentials.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+req.Status)
		return
	}
	if err := s.orch.SetCredentialStatus(r.PathValue("id"), status); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetStatistics(w http.ResponseWriter, r *http.Request) {
	s.orch.ResetStatistics()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetCostStatistics())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetQueueStatistics())
}

func (s *Server) handleUpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	var cfg ratelimit.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	s.orch.UpdateRateLimitConfig(cfg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var cfg budget.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	s.orch.UpdateCostConfig(cfg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.orch.GetHealthStatus()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
