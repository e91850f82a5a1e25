package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/app"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/config"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @title OCF Material Worker API
// @version 1.0.0
// @description Génération asynchrone de QCM, questions ouvertes, résumés et fiches d'activités à partir de documents.
// @host localhost:8081
// @BasePath /api/v1
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	application, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	zlog.Info("Starting ocf-material-worker",
		zap.String("port", cfg.Port),
		zap.String("metrics_port", cfg.MetricsPort),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.String("rag_backend", cfg.RAG.Backend),
		zap.String("storage_type", cfg.Storage.Type),
		zap.String("environment", cfg.Environment))
	for _, w := range application.Warnings() {
		zlog.Warn("Degraded mode", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		zlog.Error("Application stopped with error", zap.Error(err))
		application.Close()
		os.Exit(1)
	}
	zlog.Info("Shutdown complete")
}
