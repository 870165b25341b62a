// Package server exposes the sampler over HTTP for interactive tooling. The
// population travels inline in the request body; results are returned as JSON
// and recorded in the run log.
package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/survey-cli/internal/config"
	"github.com/sells-group/survey-cli/internal/sampler"
	"github.com/sells-group/survey-cli/internal/store"
)

// Server handles the HTTP API.
type Server struct {
	store    store.Store
	limiter  *rate.Limiter
	defaults config.SampleConfig
}

// New builds a server backed by the given run store.
func New(st store.Store, cfg config.ServerConfig, defaults config.SampleConfig) *Server {
	return &Server{
		store:    st,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		defaults: defaults,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sample", s.handleSample)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sampleRequest is the POST /api/sample body.
type sampleRequest struct {
	Columns []string    `json:"columns,omitempty"`
	Rows    [][]float64 `json:"rows"`
	Seed    int64       `json:"seed,omitempty"`
	sampler.Request
}

// sampleResponse pairs the recorded run ID with the sampling result.
type sampleResponse struct {
	RunID  string          `json:"run_id,omitempty"`
	Seed   int64           `json:"seed"`
	Result *sampler.Result `json:"result"`
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "sampling rate limit exceeded")
		return
	}

	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxAttempts == 0 {
		req.MaxAttempts = s.defaults.MaxAttempts
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	pop := sampler.Population{Columns: req.Columns, Rows: req.Rows}
	res, err := sampler.Generate(rand.New(rand.NewSource(seed)), pop, req.Request)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := sampleResponse{Seed: seed, Result: res}
	if s.store != nil {
		run := store.NewRunRecord("api", seed, len(req.Rows), req.Request, res)
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			zap.L().Error("server: save run", zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		zap.L().Error("server: get run", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, sampler.ErrInvalidInput), eris.Is(err, sampler.ErrInvalidParameter):
		return http.StatusBadRequest
	case eris.Is(err, sampler.ErrInfeasibleConstraint):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
