package api

import (
	"github.com/Open-Course-Factory/ocf-material-worker/internal/validation"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig regroupe les dépendances du routeur HTTP
type RouterConfig struct {
	Jobs               Enqueuer
	Artifacts          ArtifactReader
	Validator          *validation.APIValidator
	MaxFileMB          int
	RateLimitPerMinute int
	Environment        string
	Stats              func() models.WorkerStats
	Warnings           func() []string
	Metrics            *metrics.Metrics
	Logger             *zap.Logger
}

func SetupRouter(cfg RouterConfig) *gin.Engine {
	log := logger.OrNop(cfg.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(SecurityHeadersMiddleware())
	r.Use(StandardErrorResponse())

	validator := cfg.Validator
	if validator == nil {
		validator = validation.NewAPIValidator(nil)
	}
	r.Use(validation.InjectValidator(validator))

	handlers := NewHandlers(cfg.Jobs, cfg.MaxFileMB, cfg.Stats, cfg.Warnings, log)
	storageHandlers := NewStorageHandlers(cfg.Artifacts, log)

	// Routes
	r.GET("/health", handlers.Health)
	SetupSwagger(r, cfg.Environment)

	api := r.Group("/api/v1")
	{
		submit := api.Group("")
		if cfg.RateLimitPerMinute > 0 {
			submit.Use(RateLimitMiddleware(cfg.RateLimitPerMinute))
		}
		submit.POST("/material", validation.ValidateRequest(validation.ValidateMaterialSubmission), handlers.SubmitMaterial)
		submit.POST("/worksheet", validation.ValidateRequest(validation.ValidateWorksheetSubmission), handlers.SubmitWorksheet)

		api.GET("/jobs/:id", validation.ValidateRequest(validation.ValidateJobIDParam("id")), handlers.GetJobStatus)
		api.GET("/worksheet/files/:file_id", storageHandlers.DownloadWorksheetFile)
		api.GET("/worker/stats", handlers.WorkerStats)
	}

	return r
}
