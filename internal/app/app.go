// Package app assemble les composants du service à partir de la configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/api"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/callback"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/config"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/database"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/events"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/generation"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/jobs"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/llm"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/rag"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/storage"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/validation"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/worker"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App regroupe le serveur HTTP, le worker et le serveur de métriques
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	jobs      jobs.JobStore
	retrieval *rag.Store
	artifacts *storage.ArtifactService
	worker    *worker.Worker
	router    *gin.Engine
	server    *http.Server
	metricsSv *metrics.Server

	closers []func() error
}

// New construit tous les composants. En cas d'erreur, les ressources déjà
// ouvertes sont fermées.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{cfg: cfg, logger: log, metrics: metrics.New()}
	if err := a.build(); err != nil {
		if cerr := a.Close(); cerr != nil {
			log.Warn("App.New: failed to release resources", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg, log := a.cfg, a.logger

	db, err := a.openDatabase()
	if err != nil {
		return err
	}

	queue, err := a.newQueue(db)
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(events.Config{
		Backend:        cfg.Events.Backend,
		KafkaBrokers:   cfg.Events.KafkaBrokers,
		KafkaTopic:     cfg.Events.KafkaTopic,
		RabbitURL:      cfg.Events.RabbitURL,
		RabbitExchange: cfg.Events.RabbitExchange,
	}, log.Named("events"))
	if err != nil {
		return fmt.Errorf("failed to initialize events publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	a.jobs = jobs.NewJobStore(queue, jobs.StoreConfig{
		RecordPrefix: cfg.Queue.RecordPrefix,
		QueueKeys: map[models.JobKind]string{
			models.KindMaterial:  cfg.Queue.MaterialQueueKey,
			models.KindWorksheet: cfg.Queue.WorksheetQueueKey,
		},
		TTL: cfg.Queue.JobTTL,
	}, publisher, a.metrics, log)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		Temperature:    cfg.LLM.Temperature,
		MaxIterations:  cfg.LLM.MaxIterations,
	}, log)

	index, warning := a.newIndex(db, llmClient)
	ragCfg := rag.DefaultConfig()
	ragCfg.ChunkSize = cfg.RAG.ChunkSize
	ragCfg.ChunkOverlap = cfg.RAG.ChunkOverlap
	ragCfg.TopK = cfg.RAG.TopK
	ragCfg.FetchK = cfg.RAG.FetchK
	ragCfg.MMRLambda = cfg.RAG.MMRLambda
	a.retrieval, err = rag.NewStore(index, ragCfg, warning, a.metrics, log)
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval store: %w", err)
	}

	backend, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.artifacts = storage.NewArtifactService(backend, cfg.Worksheet.ArtifactTTL, a.metrics, log)

	pipeline := worker.NewPipeline(
		a.retrieval,
		generation.NewEngine(llmClient, a.metrics, log),
		a.artifacts,
		worker.PipelineConfig{MaxFileMB: cfg.Material.MaxFileMB, PublicBaseURL: cfg.PublicBaseURL},
		log,
	)

	cleanup := jobs.NewCleanupService(cfg.Worker.CleanupInterval, log,
		jobs.CleanupTask{Name: "jobs", Run: a.jobs.PurgeExpired},
		jobs.CleanupTask{Name: "worksheet_files", Run: a.artifacts.CleanupExpired},
	)

	wcfg := worker.DefaultConfig()
	wcfg.DequeueTimeout = cfg.Worker.DequeueTimeout
	wcfg.ErrorSleep = cfg.Worker.ErrorSleep
	wcfg.MaxRetries = cfg.Callback.MaxRetries
	wcfg.Backoffs = cfg.Callback.Backoffs
	a.worker = worker.NewWorker(a.jobs, pipeline, callback.NewClient(cfg.Callback.Timeout), cleanup, wcfg, a.metrics, log)

	a.router = api.SetupRouter(api.RouterConfig{
		Jobs:               a.jobs,
		Artifacts:          a.artifacts,
		Validator:          validation.NewAPIValidator(a.validationConfig()),
		MaxFileMB:          cfg.Material.MaxFileMB,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Environment:        cfg.Environment,
		Stats:              a.worker.GetStats,
		Warnings:           a.Warnings,
		Metrics:            a.metrics,
		Logger:             log,
	})
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.metricsSv = metrics.NewServer(cfg.MetricsPort, a.metrics, func() any { return a.worker.GetStats() }, log)

	return nil
}

// openDatabase ouvre PostgreSQL seulement si un composant en a besoin
func (a *App) openDatabase() (*database.DB, error) {
	if a.cfg.Queue.Backend != "postgres" && a.cfg.RAG.Backend != "postgres" {
		return nil, nil
	}
	db, err := database.Connect(a.cfg.Queue.DatabaseURL, a.cfg.LogLevel, a.logger)
	if err != nil {
		if a.cfg.Queue.Backend == "postgres" {
			return nil, err
		}
		// Seul l'index vectoriel en dépend: il sera signalé comme dégradé
		a.logger.Warn("App.openDatabase: database unavailable for vector index", zap.Error(err))
		return nil, nil
	}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (a *App) newQueue(db *database.DB) (jobs.DurableQueue, error) {
	switch a.cfg.Queue.Backend {
	case "memory":
		a.logger.Warn("App.newQueue: in-memory job store, jobs are lost on restart")
		return jobs.NewMemoryQueue(), nil
	case "postgres":
		return jobs.NewPostgresQueue(db.DB), nil
	case "redis":
		queue, err := jobs.NewRedisQueue(jobs.RedisOptions{
			Addr:     a.cfg.Queue.RedisAddr,
			Password: a.cfg.Queue.RedisPassword,
			DB:       a.cfg.Queue.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to job store: %w", err)
		}
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", a.cfg.Queue.Backend)
	}
}

// newIndex retourne l'index vectoriel configuré, ou nil et un avertissement
// lorsque la récupération doit fonctionner en mode dégradé
func (a *App) newIndex(db *database.DB, client *llm.Client) (rag.VectorIndex, string) {
	var embedder rag.Embedder
	switch a.cfg.RAG.Embedder {
	case "llm":
		embedder = client
	default:
		embedder = rag.NewHashEmbedder(a.cfg.RAG.EmbeddingDims)
	}

	switch a.cfg.RAG.Backend {
	case "none":
		return nil, "vector index disabled; keyword retrieval only"
	case "postgres":
		if db == nil {
			return nil, "vector index unavailable: database connection failed"
		}
		return rag.NewPostgresIndex(db.DB, embedder), ""
	default:
		return rag.NewMemoryIndex(embedder), ""
	}
}

func (a *App) validationConfig() *validation.ValidationConfig {
	vcfg := validation.DefaultValidationConfig()
	vcfg.MaxFileSize = a.cfg.Material.MaxBytes()
	vcfg.DefaultActivities = a.cfg.Worksheet.DefaultActivities
	vcfg.MinActivities = a.cfg.Worksheet.MinActivities
	vcfg.MaxActivities = a.cfg.Worksheet.MaxActivities
	vcfg.RejectLocalCallbacks = a.cfg.Environment == "production"
	return vcfg
}

// Warnings liste les dégradations détectées au démarrage
func (a *App) Warnings() []string {
	if a.retrieval == nil {
		return nil
	}
	if w := a.retrieval.InitWarning(); w != "" {
		return []string{w}
	}
	return nil
}

// Router expose le routeur HTTP (tests)
func (a *App) Router() *gin.Engine {
	return a.router
}

// Run démarre l'API, le serveur de métriques et le worker. À l'annulation
// du contexte, le worker termine le job en cours puis les serveurs s'arrêtent.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("App.Run: API listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.metricsSv.Run(gctx)
	})

	g.Go(func() error {
		return a.worker.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.worker.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close libère les connexions dans l'ordre inverse d'ouverture
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
