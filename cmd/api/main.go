package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	analysisAPI "policy_compass/pkg/api/analysis"
	"policy_compass/pkg/api/assistant"
	configAPI "policy_compass/pkg/api/config"
	dashboardAPI "policy_compass/pkg/api/dashboard"
	"policy_compass/pkg/core/app"
	"policy_compass/pkg/core/config"
	"policy_compass/pkg/core/logger"
)

func main() {
	// Load environment variables
	godotenv.Load()

	if err := run(); err != nil {
		logger.Log.Fatal(err)
	}
}

// run serves until the listener fails or the process is signalled.
func run() error {
	configPath := os.Getenv("POLICY_COMPASS_CONFIG")
	if configPath == "" {
		configPath = "config/app.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	log := logger.Component("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	origin := cfg.Server.AllowedOrigin
	mux := http.NewServeMux()
	analysisAPI.NewHandler(a.Analyzer, a.Repo, a.Agents, origin).Register(mux)
	assistant.NewHandler(a.Chats, a.Repo, origin).Register(mux)
	configAPI.NewHandler(a.Agents, origin).Register(mux)
	dashboardAPI.NewHandler(origin).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("API server starting on %s", srv.Addr)
	for _, route := range []string{
		"POST /api/analysis",
		"GET  /api/analysis",
		"GET  /api/analysis/{id}",
		"GET  /api/analysis/{id}/report?format=md|html",
		"GET  /api/analysis/{id}/contracts/{cid}",
		"POST /api/assistant/sessions",
		"GET  /api/assistant/sessions/{id}",
		"DELETE /api/assistant/sessions/{id}",
		"POST /api/assistant/message",
		"GET  /api/config",
		"POST /api/config/switch",
		"GET  /api/dashboard/defaults",
		"GET  /healthz",
	} {
		log.Debugf("  - %s", route)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}
	return nil
}
