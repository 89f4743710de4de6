// Package server exposes stored leads and pipeline runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// RunFunc starts one pipeline run. onState receives each state transition.
type RunFunc func(ctx context.Context, onState func(model.RunState)) (*pipeline.Result, error)

// RunStatus describes the background run, if any.
type RunStatus struct {
	Running   bool              `json:"running"`
	State     model.RunState    `json:"state,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Last      *model.RunSummary `json:"last,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// Server serves the lead API. At most one pipeline run is in flight.
type Server struct {
	leads   store.LeadStore
	runs    store.RunRecorder
	start   RunFunc
	origins []string

	// ctx outlives requests; background runs use it.
	ctx context.Context
	wg  sync.WaitGroup

	mu     sync.Mutex
	status RunStatus
}

// New creates a Server. ctx bounds background runs. start may be nil, in
// which case POST /api/runs is not offered.
func New(ctx context.Context, leads store.LeadStore, runs store.RunRecorder, start RunFunc, allowedOrigins []string) *Server {
	return &Server{
		leads:   leads,
		runs:    runs,
		start:   start,
		origins: allowedOrigins,
		ctx:     ctx,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", s.listLeads)
		r.Get("/leads/{placeID}", s.getLead)
		r.Patch("/leads/{placeID}/status", s.updateLeadStatus)
		r.Get("/runs", s.listRuns)
		if s.start != nil {
			r.Post("/runs", s.startRun)
		}
	})
	return r
}

// Status returns a snapshot of the background run status.
func (s *Server) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Wait blocks until any background run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// tryStart marks a run as started, or reports false when one is running.
func (s *Server) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false
	}
	now := time.Now().UTC()
	s.status.Running = true
	s.status.State = model.RunStateIdle
	s.status.StartedAt = &now
	return true
}

func (s *Server) setState(st model.RunState) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}

func (s *Server) runInBackground() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		res, err := s.start(s.ctx, s.setState)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.status.Running = false
		s.status.LastError = ""
		if res != nil {
			summary := res.Summary
			s.status.Last = &summary
			s.status.State = summary.State
		}
		if err != nil {
			s.status.LastError = err.Error()
			zap.L().Error("server: background run failed", zap.Error(err))
			return
		}
		zap.L().Info("server: background run complete",
			zap.String("run_id", res.Summary.ID),
			zap.Int("accepted", res.Summary.Counters.Accepted),
		)
	}()
}

// requestLogger logs each request with its status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
