// Package server exposes the refactoring service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pharoreview/internal/config"
	"pharoreview/internal/service"
)

// Refactorer is the part of the executor the handlers need.
type Refactorer interface {
	Refactor(ctx context.Context, className, methodName string) (*service.RunRecord, error)
	Busy() bool
}

// Server wires the HTTP routes to the executor.
type Server struct {
	executor Refactorer
	cfg      *config.Config
	logger   *zap.Logger
	http     *http.Server
}

// New builds the server with all routes and middleware attached.
func New(executor Refactorer, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		executor: executor,
		cfg:      cfg,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/busy", s.handleBusy)
	mux.HandleFunc("POST /api/v1/refactor", s.handleRefactor)

	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  config.ParseDuration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: config.ParseDuration(cfg.Server.WriteTimeout, 15*time.Minute),
	}
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// refactorRequest is the refactor endpoint payload.
type refactorRequest struct {
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     s.cfg.AppName,
		"version": s.cfg.Version,
		"docs":    "/api/v1/refactor",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"version":  s.cfg.Version,
		"app_name": s.cfg.AppName,
	})
}

func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"busy": s.executor.Busy()})
}

func (s *Server) handleRefactor(w http.ResponseWriter, r *http.Request) {
	var req refactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid JSON body"})
		return
	}

	req.ClassName = strings.TrimSpace(req.ClassName)
	req.MethodName = strings.TrimSpace(req.MethodName)
	if req.ClassName == "" || req.MethodName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Detail: "class_name and method_name must be non-empty",
		})
		return
	}

	// Cheap pre-check so obviously doomed requests fail fast; the
	// executor still decides atomically.
	if s.executor.Busy() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Detail: "a refactoring run is already in progress, try again later",
		})
		return
	}

	record, err := s.executor.Refactor(r.Context(), req.ClassName, req.MethodName)
	if err != nil {
		if errors.Is(err, service.ErrBusy) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Detail: "a refactoring run is already in progress, try again later",
			})
			return
		}
		s.logger.Error("refactor request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}

	if !record.Success {
		writeJSON(w, http.StatusInternalServerError, record)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// loggingMiddleware logs one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// corsMiddleware applies the configured CORS policy.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(cors.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if cors.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
