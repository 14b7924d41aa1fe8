// ABOUTME: HTTP server hosting the visualization generation endpoint behind a chi router.
// ABOUTME: POST /api/generate-ui runs the pipeline; GET /healthz reports the configured models.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/2389-research/calquity/generate"
	"github.com/2389-research/calquity/viz"
)

// DefaultMaxBodyBytes bounds request bodies; page images arrive inline.
const DefaultMaxBodyBytes = 32 << 20

// Generator is what the endpoint runs for each request.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (generate.Result, error)
}

// ServerConfig holds the configuration for the generation server.
type ServerConfig struct {
	Addr         string // listen address (default: "127.0.0.1:8787")
	Generator    Generator
	VisionModel  string
	TextModel    string
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Server serves the generation endpoint.
type Server struct {
	cfg    ServerConfig
	router chi.Router
	logger *zap.Logger
}

// NewServer validates cfg and builds the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Generator == nil {
		return nil, errors.New("Generator must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger.With(zap.String("component", "web"))}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("action=listen", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/generate-ui", s.handleGenerate)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"vision_model": s.cfg.VisionModel,
		"text_model":   s.cfg.TextModel,
	})
}

// handleGenerate never surfaces a crash: anything other than missing input
// answers 200 with the recovery card.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("action=generate outcome=panic", zap.Any("panic", rec))
			writeJSON(w, http.StatusOK, viz.RecoveryCard())
		}
	}()

	var req generate.Request
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.Warn("action=generate outcome=bad_body", zap.Error(err))
		writeJSON(w, http.StatusOK, viz.RecoveryCard())
		return
	}

	res, err := s.cfg.Generator.Generate(r.Context(), req)
	switch {
	case errors.Is(err, generate.ErrMissingInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing query or context"})
	case err != nil || res.Spec.IsZero():
		logger.Error("action=generate outcome=error", zap.Error(err))
		writeJSON(w, http.StatusOK, viz.RecoveryCard())
	default:
		logger.Info("action=generate outcome=ok",
			zap.String("run_id", res.RunID),
			zap.String("stage", string(res.Stage)),
			zap.String("kind", string(res.Spec.Kind())))
		writeJSON(w, http.StatusOK, res.Spec)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
