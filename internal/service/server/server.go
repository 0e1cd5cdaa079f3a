package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/adapter/prompt"
	"github.com/adrianov/diskadmit/internal/domain/event"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
	"github.com/adrianov/diskadmit/internal/service/admission"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:9200",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server exposes the operator API: transfer add/resume/remove, pending
// confirmations and their decisions, notices and counters.
type Server struct {
	config  *Config
	logger  *zap.Logger
	server  *http.Server
	metrics *event.MetricsHandler

	transferHandler     *TransferHandler
	confirmationHandler *ConfirmationHandler
}

// New creates a new HTTP server
func New(cfg *Config, reg *registry.Registry, coordinator *admission.Coordinator, eng port.Engine, prompts *prompt.Center, metrics *event.MetricsHandler, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	s.transferHandler = NewTransferHandler(reg, coordinator, eng, logger)
	s.confirmationHandler = NewConfirmationHandler(prompts, logger)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Transfer endpoints
	mux.HandleFunc("GET /transfers", s.transferHandler.HandleList)
	mux.HandleFunc("POST /transfers", s.transferHandler.HandleAdd)
	mux.HandleFunc("POST /transfers/{id}/resume", s.transferHandler.HandleResume)
	mux.HandleFunc("DELETE /transfers/{id}", s.transferHandler.HandleRemove)
	mux.HandleFunc("GET /volumes", s.transferHandler.HandleVolumes)

	// Confirmation endpoints
	mux.HandleFunc("GET /confirmations", s.confirmationHandler.HandlePending)
	mux.HandleFunc("POST /confirmations/{id}/confirm", s.confirmationHandler.HandleConfirm)
	mux.HandleFunc("POST /confirmations/{id}/cancel", s.confirmationHandler.HandleCancel)
	mux.HandleFunc("GET /notices", s.confirmationHandler.HandleNotices)

	// Stats
	mux.HandleFunc("GET /stats", s.handleStats)

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.config.BindAddr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.GetMetrics())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
