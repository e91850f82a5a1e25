package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/jobs"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/validation"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "ocf-material-worker"

// Enqueuer est la partie du job store utilisée par l'API
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.JobKind, sub *models.Submission) (string, error)
	Get(ctx context.Context, id string) (*models.Job, error)
}

var _ Enqueuer = (jobs.JobStore)(nil)

type Handlers struct {
	jobs      Enqueuer
	maxFileMB int
	stats     func() models.WorkerStats
	warnings  func() []string
	logger    *zap.Logger
	now       func() time.Time
}

func NewHandlers(store Enqueuer, maxFileMB int, stats func() models.WorkerStats, warnings func() []string, log *zap.Logger) *Handlers {
	return &Handlers{
		jobs:      store,
		maxFileMB: maxFileMB,
		stats:     stats,
		warnings:  warnings,
		logger:    logger.OrNop(log).Named("api"),
		now:       time.Now,
	}
}

// Health check
// @Summary Vérification de santé
// @Description Retourne l'état du service et les dégradations détectées au démarrage
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse "Service opérationnel"
// @Router /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: h.now().UTC(),
	}
	if h.warnings != nil {
		if w := h.warnings(); len(w) > 0 {
			resp.Status = "degraded"
			resp.Warnings = w
		}
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitMaterial enfile un job de génération de contenu pédagogique
// @Summary Soumettre un document pour générer QCM, questions ouvertes et résumé
// @Description Le document est traité de manière asynchrone; le résultat est posté sur callback_url.
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param user_id formData string true "Identifiant de l'utilisateur"
// @Param callback_url formData string true "URL de callback http(s)"
// @Param file formData file true "Document (.pdf, .pptx, .txt)"
// @Param generate_types formData []string true "Blocs demandés (mcq, essay, summary)" collectionFormat(multi)
// @Param mcq_count formData int false "Nombre de QCM (1-20)" default(10)
// @Param essay_count formData int false "Nombre de questions ouvertes (1-10)" default(3)
// @Param summary_max_words formData int false "Longueur maximale du résumé (80-400)" default(200)
// @Param mcp_enabled formData bool false "Activation des outils MCP" default(true)
// @Success 202 {object} models.SubmissionAccepted "Job accepté"
// @Failure 413 {object} models.ErrorResponse "Fichier trop volumineux"
// @Failure 422 {object} models.ErrorResponse "Paramètres invalides"
// @Failure 503 {object} models.ErrorResponse "Job store indisponible"
// @Router /material [post]
func (h *Handlers) SubmitMaterial(c *gin.Context) {
	h.submit(c, models.KindMaterial, "Material queued for async processing.")
}

// SubmitWorksheet enfile un job de génération de fiche d'activités
// @Summary Soumettre un document pour générer une fiche d'activités
// @Description La fiche est rendue en document téléchargeable; son URL est transmise dans le callback.
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param user_id formData string true "Identifiant de l'utilisateur"
// @Param callback_url formData string true "URL de callback http(s)"
// @Param file formData file true "Document (.pdf, .pptx, .txt)"
// @Param activity_count formData int false "Nombre d'activités" default(5)
// @Success 202 {object} models.SubmissionAccepted "Job accepté"
// @Failure 413 {object} models.ErrorResponse "Fichier trop volumineux"
// @Failure 422 {object} models.ErrorResponse "Paramètres invalides"
// @Failure 503 {object} models.ErrorResponse "Job store indisponible"
// @Router /worksheet [post]
func (h *Handlers) SubmitWorksheet(c *gin.Context) {
	h.submit(c, models.KindWorksheet, "Worksheet queued for async processing.")
}

func (h *Handlers) submit(c *gin.Context, kind models.JobKind, message string) {
	sub, ok := validation.GetSubmission(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Validated submission missing"})
		return
	}

	payload, err := h.readFile(sub)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid upload", "detail": err.Error()})
		return
	}
	if limit := int64(h.maxFileMB) * 1024 * 1024; h.maxFileMB > 0 && int64(len(payload)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":  "Validation failed",
			"detail": fmt.Sprintf("File exceeds maximum size of %d MB.", h.maxFileMB),
		})
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), kind, &models.Submission{
		UserID:      sub.UserID,
		CallbackURL: sub.CallbackURL,
		Filename:    sub.Filename,
		ContentType: sub.ContentType,
		File:        payload,
		Material:    sub.Material,
		Worksheet:   sub.Worksheet,
	})
	if err != nil {
		h.logger.Error("Handlers.submit: failed to enqueue job", zap.String("kind", string(kind)), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Job store unavailable",
			"detail": fmt.Sprintf("Failed to enqueue %s job: %v", kind, err),
		})
		return
	}

	h.logger.Info("Handlers.submit: job accepted",
		zap.String("job_id", jobID), zap.String("kind", string(kind)), zap.String("filename", sub.Filename))
	c.JSON(http.StatusAccepted, models.SubmissionAccepted{
		JobID:   jobID,
		Status:  string(models.StatusAccepted),
		Message: message,
	})
}

// readFile lit au plus la taille maximale plus un octet
func (h *Handlers) readFile(sub *validation.Submission) ([]byte, error) {
	file, err := sub.File.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if h.maxFileMB > 0 {
		reader = io.LimitReader(file, int64(h.maxFileMB)*1024*1024+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}

// GetJobStatus retourne l'enregistrement d'un job sans le fichier
// @Summary Statut d'un job
// @Description Retourne l'état, le nombre de tentatives de callback et la dernière erreur d'un job
// @Tags Jobs
// @Produce json
// @Param id path string true "ID du job (job-<32 hex>)"
// @Success 200 {object} models.JobResponse "Job trouvé"
// @Failure 422 {object} models.ErrorResponse "ID invalide"
// @Failure 404 {object} models.ErrorResponse "Job introuvable ou expiré"
// @Router /jobs/{id} [get]
func (h *Handlers) GetJobStatus(c *gin.Context) {
	jobID := c.GetString(validation.ValidatedJobIDKey)

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Handlers.GetJobStatus: failed to read job", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job store unavailable"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job.ToResponse())
}

// WorkerStats retourne les compteurs du worker
// @Summary Statistiques du worker
// @Tags Worker
// @Produce json
// @Success 200 {object} models.WorkerStatsResponse "Statistiques"
// @Router /worker/stats [get]
func (h *Handlers) WorkerStats(c *gin.Context) {
	var stats models.WorkerStats
	if h.stats != nil {
		stats = h.stats()
	}
	c.JSON(http.StatusOK, models.WorkerStatsResponse{
		Worker:    stats,
		Timestamp: h.now().UTC(),
	})
}
