// Package api implements the minimal read-only status/health HTTP surface
// (SPEC_FULL.md item 3), adapted from the teacher's dashboard API down to
// /health and /api/status — the full external CRUD API from spec §1
// (articles/orderbooks/signals) stays a documented contract-only
// collaborator.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"polymarket-surveillance/internal/config"
)

// Server runs the status/health HTTP surface.
type Server struct {
	cfg      config.StatusConfig
	provider StatusProvider
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a status server over provider, without starting it.
func NewServer(cfg config.StatusConfig, provider StatusProvider, logger *slog.Logger) *Server {
	logger = logger.With("component", "status_server")

	mux := http.NewServeMux()
	s := &Server{cfg: cfg, provider: provider, logger: logger}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Stop is called. If status reporting is
// disabled in config, Start is a documented no-op.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("status server disabled")
		return nil
	}

	s.logger.Info("status server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		ProcessedTrades: s.provider.ProcessedTrades(),
		DetectedSignals: s.provider.DetectedSignals(),
		UptimeSeconds:   s.provider.UptimeSeconds(),
		Running:         s.provider.Running(),
		Assets:          s.provider.AssetStatuses(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode status response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
