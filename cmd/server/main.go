package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/syntaxd/internal/api"
	"github.com/dgallion1/syntaxd/internal/config"
	"github.com/dgallion1/syntaxd/internal/pipeline"
	"github.com/dgallion1/syntaxd/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	log := service.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize engine, cache and annotator.
	svc, err := service.New(ctx, cfg, log)
	if err != nil {
		log.Error("initializing annotator", "error", err)
		os.Exit(1)
	}
	go svc.RunPurge(ctx)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(service.PipelineConfig(cfg), svc.Annotator, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(svc.Annotator, orch, svc.Stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		cancel()
		svc.Close()
	}()

	log.Info("starting syntaxd", "port", cfg.Server.Port, "engine", svc.Annotator.SourceIdentifier())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
