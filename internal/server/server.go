// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/subworkflow"
)

// Server is the webhook ingress.
type Server struct {
	httpServer *http.Server
}

// New creates and wires up the server. It does NOT start listening;
// call Run() for that.
func New(cfg *config.ServerConfig, reg *registry.Registry, caller *rpc.Caller, launcher *subworkflow.Launcher) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(cfg, NewHandlers(reg, caller, launcher)),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// NewRouter builds the route table.
func NewRouter(cfg *config.ServerConfig, handlers *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(cfg.MaxBodyBytes))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKey(cfg.APIKey))
		r.Get("/agents", handlers.ListAgents)
		r.Post("/webhooks/{tenant}/{agent}/{workflow}/{name}", handlers.Webhook)
	})

	return r
}

// Handler returns the HTTP handler, for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until Shutdown is called or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			getLog().Warn().Err(err).Msg("Server shutdown did not complete cleanly")
		}
	}()

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("Webhook server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
