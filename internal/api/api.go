// CLAUDE:SUMMARY Core API struct, route table and shared helpers — health, self-test verification, dev tokens, JSON responses, error mapping
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/submission"
	"github.com/hazyhaar/proofmine/internal/verify"
)

// maxBodySize is the maximum HTTP body size for task and submission payloads.
const maxBodySize = 200 * 1024 // 200KB

type API struct {
	store         db.Store
	auth          *auth.Auth
	manager       *submission.Manager
	verifier      verify.Verifier
	metricsDB     *db.MetricsDB
	submitLimiter *RateLimiter
	devTokens     bool
	corsOrigins   []string
}

func New(store db.Store, a *auth.Auth, manager *submission.Manager, verifier verify.Verifier) *API {
	return &API{
		store:         store,
		auth:          a,
		manager:       manager,
		verifier:      verifier,
		submitLimiter: NewRateLimiter(30, 60*time.Second),
		corsOrigins:   []string{"*"},
	}
}

// SetMetricsDB enables the SQLite request ledger and judge stats in /health.
func (a *API) SetMetricsDB(mdb *db.MetricsDB) {
	a.metricsDB = mdb
}

// SetSubmitRateLimit configures the per-caller submission limiter.
func (a *API) SetSubmitRateLimit(limit int, window time.Duration) {
	if limit > 0 && window > 0 {
		a.submitLimiter = NewRateLimiter(limit, window)
	}
}

// EnableDevTokens exposes POST /auth/token for local development.
func (a *API) EnableDevTokens(on bool) {
	a.devTokens = on
}

func (a *API) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		a.corsOrigins = origins
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /test/verification", a.handleTestVerification)
	mux.Handle("GET /metrics", promhttp.Handler())
	if a.devTokens {
		mux.HandleFunc("POST /auth/token", a.handleDevToken)
	}

	// Tasks
	mux.HandleFunc("POST /tasks/create", a.requireAuth(a.handleCreateTask))
	mux.HandleFunc("GET /tasks", a.handleListTasks)
	mux.HandleFunc("GET /tasks/{task_id}", a.handleGetTask)
	mux.HandleFunc("POST /tasks/{task_id}/close", a.requireAuth(a.handleCloseTask))

	// Submissions
	mux.HandleFunc("POST /tasks/{task_id}/submit", a.requireAuth(RateLimitMiddleware(a.submitLimiter, a.handleSubmit)))
	mux.HandleFunc("GET /tasks/{task_id}/submissions", a.handleListTaskSubmissions)
	mux.HandleFunc("GET /tasks/{task_id}/submissions/{submission_id}", a.handleGetSubmission)
	mux.HandleFunc("POST /submissions/{submission_id}/verify", a.requireAuth(a.handleVerifySubmission))
	mux.HandleFunc("GET /submissions/pending", a.handleListPending)

	// Reputation
	mux.HandleFunc("GET /users/{wallet_address}/reputation", a.handleGetReputation)
	mux.HandleFunc("GET /users/{wallet_address}/reputation/events", a.handleListReputationEvents)
}

// Handler returns the full HTTP stack: routes, metrics, security headers, CORS.
func (a *API) Handler(extra ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	for _, fn := range extra {
		fn(mux)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !containsWildcard(a.corsOrigins),
	})
	return c.Handler(SecurityHeaders(Instrument(a.metricsDB, mux)))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]interface{}{
		"status":     "healthy",
		"judge_mode": a.verifier.Mode(),
		"database":   "ok",
		"timestamp":  time.Now().UTC(),
	}
	status := http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		slog.Error("health: store ping", "error", err)
		resp["status"] = "degraded"
		resp["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if a.metricsDB != nil {
		if st, err := a.metricsDB.JudgeStats(ctx); err == nil {
			resp["judge_calls"] = st
		}
	}
	jsonResp(w, status, resp)
}

// handleTestVerification runs the fixed sample task through the configured
// verifier without touching storage.
func (a *API) handleTestVerification(w http.ResponseWriter, r *http.Request) {
	req := verify.SampleRequest()
	res, err := a.verifier.Verify(r.Context(), req)
	if err != nil {
		slog.Warn("self-test verification failed", "error", err)
		jsonResp(w, http.StatusBadGateway, map[string]interface{}{
			"status": "error",
			"mode":   a.verifier.Mode(),
			"error":  err.Error(),
		})
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"mode":         a.verifier.Mode(),
		"task":         req.Instructions,
		"submission":   req.MinerOutput,
		"verification": res,
	})
}

func (a *API) handleDevToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"wallet_address"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	token, err := a.auth.GenerateToken(req.WalletAddress)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"token": token})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if strings.Contains(err.Error(), "too large") {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// storeError maps storage and lifecycle errors to HTTP responses.
func storeError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		jsonError(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, db.ErrAlreadyTerminal):
		jsonError(w, "submission already verified", http.StatusConflict)
	case errors.Is(err, submission.ErrTaskClosed):
		jsonError(w, "task is not active", http.StatusConflict)
	case errors.Is(err, submission.ErrTaskFull):
		jsonError(w, "task has reached its maximum number of submissions", http.StatusConflict)
	default:
		slog.Error(what, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
