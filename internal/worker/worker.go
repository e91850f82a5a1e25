// Package worker consomme les jobs un par un, exécute le pipeline de leur kind
// et livre le résultat par callback avec nouvelles tentatives.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/callback"
	"github.com/Open-Course-Factory/ocf-material-worker/internal/jobs"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.uber.org/zap"
)

// DeliveryFailedMessage est le dernier message d'erreur d'un job dont le callback n'a jamais abouti
const DeliveryFailedMessage = "Callback delivery failed after max retries."

// Processor exécute le pipeline d'un job selon son kind
type Processor interface {
	ProcessMaterial(ctx context.Context, job *models.Job) (*models.MaterialResult, error)
	ProcessWorksheet(ctx context.Context, job *models.Job) (*models.WorksheetResult, error)
}

// Deliverer effectue une tentative de livraison du callback
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload *callback.Payload) error
}

// Config contient les paramètres de la boucle et de la livraison
type Config struct {
	DequeueTimeout time.Duration
	ErrorSleep     time.Duration
	MaxRetries     int
	Backoffs       []time.Duration
	MaxJitter      time.Duration
}

// DefaultConfig retourne la configuration par défaut
func DefaultConfig() Config {
	return Config{
		DequeueTimeout: time.Second,
		ErrorSleep:     time.Second,
		MaxRetries:     3,
		Backoffs:       []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
		MaxJitter:      500 * time.Millisecond,
	}
}

// Worker est l'unique consommateur des files de jobs du processus
type Worker struct {
	jobs      jobs.JobStore
	processor Processor
	callback  Deliverer
	cleanup   *jobs.CleanupService
	cfg       Config
	metrics   *metrics.Metrics
	logger    *zap.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration

	// État du worker - protégé par mutex
	mu           sync.RWMutex
	status       string
	currentJobID string

	// Statistiques - utiliser atomic pour éviter les locks
	jobsTotal            int64
	jobsSucceeded        int64
	jobsFailedProcessing int64
	jobsFailedDelivery   int64

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWorker crée le worker; cleanup peut être nil
func NewWorker(store jobs.JobStore, processor Processor, deliverer Deliverer, cleanup *jobs.CleanupService, cfg Config, m *metrics.Metrics, log *zap.Logger) *Worker {
	w := &Worker{
		jobs:      store,
		processor: processor,
		callback:  deliverer,
		cleanup:   cleanup,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.OrNop(log).Named("worker"),
		now:       time.Now,
		sleep:     sleepContext,
		status:    "idle",
		stopCh:    make(chan struct{}),
	}
	w.jitter = func() time.Duration {
		if w.cfg.MaxJitter <= 0 {
			return 0
		}
		return rand.N(w.cfg.MaxJitter)
	}
	return w
}

// Run exécute la boucle jusqu'à Stop ou l'annulation de ctx.
// Le signal d'arrêt est lu en tête d'itération: un job en cours va à son terme.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("worker already running")
	}
	defer w.running.Store(false)
	defer w.setState("stopped", "")

	w.logger.Info("Worker started",
		zap.Duration("dequeue_timeout", w.cfg.DequeueTimeout), zap.Int("max_retries", w.cfg.MaxRetries))

	for {
		select {
		case <-w.stopCh:
			w.logger.Info("Worker stopped")
			return nil
		case <-ctx.Done():
			w.logger.Info("Worker stopped due to context cancellation")
			return nil
		default:
		}

		if w.cleanup != nil {
			w.cleanup.RunIfDue(ctx)
		}

		job, err := w.jobs.Dequeue(ctx, w.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Worker.Run: failed to dequeue job", zap.Error(err))
			_ = w.sleep(ctx, w.cfg.ErrorSleep)
			continue
		}
		if job == nil {
			continue
		}

		// Le job en cours n'est pas interrompu par l'arrêt du processus
		w.handleJob(context.WithoutCancel(ctx), job)
	}
}

// Stop demande l'arrêt coopératif de la boucle
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning indique si la boucle est active
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// handleJob traite un job et livre son résultat; une panique est journalisée
// sans interrompre la boucle.
func (w *Worker) handleJob(ctx context.Context, job *models.Job) {
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))

	w.setState("busy", job.ID)
	atomic.AddInt64(&w.jobsTotal, 1)
	start := w.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker.handleJob: unexpected failure while processing job",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		w.setState("idle", "")
	}()

	if _, err := w.jobs.Update(ctx, job.ID, jobs.StatusUpdate(models.StatusProcessing)); err != nil {
		log.Error("Worker.handleJob: failed to mark job processing", zap.Error(err))
		return
	}

	payload := w.process(ctx, job, log)

	update := jobs.StatusUpdate(payload.Status)
	if payload.Status == models.StatusSucceeded {
		atomic.AddInt64(&w.jobsSucceeded, 1)
		update = update.WithoutError()
	} else {
		atomic.AddInt64(&w.jobsFailedProcessing, 1)
		update = update.WithError(payload.Error.Message)
	}
	if _, err := w.jobs.Update(ctx, job.ID, update); err != nil {
		log.Error("Worker.handleJob: failed to record processing outcome", zap.Error(err))
	}

	finalStatus := payload.Status
	if !w.deliverWithRetry(ctx, job, payload, log) {
		atomic.AddInt64(&w.jobsFailedDelivery, 1)
		finalStatus = models.StatusFailedDelivery
		upd := jobs.StatusUpdate(models.StatusFailedDelivery).WithError(DeliveryFailedMessage)
		if _, err := w.jobs.Update(ctx, job.ID, upd); err != nil {
			log.Error("Worker.handleJob: failed to mark delivery failure", zap.Error(err))
		}
	}

	elapsed := w.now().Sub(start)
	w.metrics.JobProcessed(string(job.Kind), string(finalStatus), elapsed)
	log.Info("Worker.handleJob: job finished", zap.String("status", string(finalStatus)), zap.Duration("duration", elapsed))
}

// process exécute le pipeline et construit le payload de callback
func (w *Worker) process(ctx context.Context, job *models.Job, log *zap.Logger) *callback.Payload {
	var (
		result any
		err    error
	)
	switch job.Kind {
	case models.KindMaterial:
		var r *models.MaterialResult
		if r, err = w.processor.ProcessMaterial(ctx, job); err == nil {
			result = r
		}
	case models.KindWorksheet:
		var r *models.WorksheetResult
		if r, err = w.processor.ProcessWorksheet(ctx, job); err == nil {
			result = r
		}
	default:
		err = fmt.Errorf("unsupported job kind %q", job.Kind)
	}

	finishedAt := w.now().UTC()
	if err != nil {
		code := MapErrorCode(err)
		log.Warn("Worker.process: job failed", zap.String("code", code), zap.Error(err))
		return callback.Failed(job, code, err.Error(), finishedAt)
	}
	return callback.Succeeded(job, result, finishedAt)
}

// deliverWithRetry effectue au plus MaxRetries+1 tentatives. Chaque tentative
// enregistre callback_attempts; le délai suit la liste de backoffs plus une gigue.
func (w *Worker) deliverWithRetry(ctx context.Context, job *models.Job, payload *callback.Payload, log *zap.Logger) bool {
	total := w.cfg.MaxRetries + 1

	for attempt := 1; attempt <= total; attempt++ {
		payload.Attempt = attempt
		err := w.callback.Deliver(ctx, job.CallbackURL, payload)
		w.metrics.DeliveryAttempt(err == nil)

		if err == nil {
			w.recordAttempt(ctx, job.ID, jobs.JobUpdate{}.WithAttempts(attempt).WithoutError(), log)
			return true
		}

		w.recordAttempt(ctx, job.ID, jobs.JobUpdate{}.WithAttempts(attempt).WithError(err.Error()), log)
		log.Warn("Worker.deliver: callback attempt failed",
			zap.Int("attempt", attempt), zap.Int("total_attempts", total), zap.Error(err))
		if attempt >= total {
			return false
		}

		if err := w.sleep(ctx, w.backoff(attempt)+w.jitter()); err != nil {
			return false
		}
	}
	return false
}

func (w *Worker) recordAttempt(ctx context.Context, jobID string, upd jobs.JobUpdate, log *zap.Logger) {
	if _, err := w.jobs.Update(ctx, jobID, upd); err != nil {
		log.Error("Worker.deliver: failed to record delivery attempt", zap.Error(err))
	}
}

// backoff retourne le délai après la tentative attempt (à partir de 1)
func (w *Worker) backoff(attempt int) time.Duration {
	if len(w.cfg.Backoffs) == 0 {
		return 0
	}
	return w.cfg.Backoffs[min(attempt-1, len(w.cfg.Backoffs)-1)]
}

// setState met à jour l'état du worker de manière atomique
func (w *Worker) setState(status, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = status
	w.currentJobID = jobID
}

// getState retourne l'état actuel du worker
func (w *Worker) getState() (string, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.status, w.currentJobID
}

// GetStats retourne l'état et les compteurs du worker
func (w *Worker) GetStats() models.WorkerStats {
	status, currentJobID := w.getState()
	return models.WorkerStats{
		Status:               status,
		CurrentJobID:         currentJobID,
		Running:              w.IsRunning(),
		JobsTotal:            atomic.LoadInt64(&w.jobsTotal),
		JobsSucceeded:        atomic.LoadInt64(&w.jobsSucceeded),
		JobsFailedProcessing: atomic.LoadInt64(&w.jobsFailedProcessing),
		JobsFailedDelivery:   atomic.LoadInt64(&w.jobsFailedDelivery),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
