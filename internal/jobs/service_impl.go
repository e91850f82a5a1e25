package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/internal/events"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidTransition est retourné lorsqu'une mise à jour violerait la monotonie du statut
var ErrInvalidTransition = errors.New("invalid job status transition")

type jobStoreImpl struct {
	queue     DurableQueue
	cfg       StoreConfig
	queueKeys []string
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewJobStore crée le job store au-dessus d'une DurableQueue
func NewJobStore(queue DurableQueue, cfg StoreConfig, publisher events.Publisher, m *metrics.Metrics, log *zap.Logger) JobStore {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	// Ordre stable des files: material avant worksheet
	kinds := make([]string, 0, len(cfg.QueueKeys))
	for kind := range cfg.QueueKeys {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	queueKeys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		queueKeys = append(queueKeys, cfg.QueueKeys[models.JobKind(kind)])
	}

	return &jobStoreImpl{
		queue:     queue,
		cfg:       cfg,
		queueKeys: queueKeys,
		publisher: publisher,
		metrics:   m,
		logger:    logger.OrNop(log).Named("jobs"),
		tracer:    otel.Tracer("ocf-material-worker/jobs"),
		now:       time.Now,
	}
}

func (s *jobStoreImpl) recordKey(id string) string {
	return s.cfg.RecordPrefix + id
}

func (s *jobStoreImpl) Enqueue(ctx context.Context, kind models.JobKind, sub *models.Submission) (string, error) {
	ctx, span := s.tracer.Start(ctx, "JobStore.Enqueue")
	defer span.End()

	queueKey, ok := s.cfg.QueueKeys[kind]
	if !ok {
		err := fmt.Errorf("no queue configured for job kind %q", kind)
		span.RecordError(err)
		return "", err
	}

	job := models.NewJob(kind, sub, s.now().UTC())
	span.SetAttributes(attribute.String("job.id", job.ID), attribute.String("job.kind", string(kind)))

	// L'enregistrement est écrit avant que l'id soit visible dans la file
	if err := s.save(ctx, job, s.cfg.TTL); err != nil {
		span.RecordError(err)
		s.logger.Error("JobStore.Enqueue: failed to persist job", zap.String("job_id", job.ID), zap.Error(err))
		return "", err
	}
	if err := s.queue.Push(ctx, queueKey, job.ID); err != nil {
		span.RecordError(err)
		s.logger.Error("JobStore.Enqueue: failed to push job", zap.String("job_id", job.ID), zap.Error(err))
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.metrics.JobSubmitted(string(kind))
	s.publish(ctx, job)
	s.logger.Info("JobStore.Enqueue: job accepted",
		zap.String("job_id", job.ID), zap.String("kind", string(kind)), zap.String("user_id", job.UserID))
	return job.ID, nil
}

func (s *jobStoreImpl) Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	_, id, err := s.queue.BlockingPop(ctx, s.queueKeys, timeout)
	if errors.Is(err, ErrQueueEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "JobStore.Dequeue")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	job, err := s.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if job == nil {
		s.logger.Warn("JobStore.Dequeue: record missing for queued id, skipping", zap.String("job_id", id))
		return nil, nil
	}
	if job.Status.IsTerminal() {
		s.logger.Warn("JobStore.Dequeue: job already terminal, skipping",
			zap.String("job_id", id), zap.String("status", string(job.Status)))
		return nil, nil
	}
	return job, nil
}

func (s *jobStoreImpl) Get(ctx context.Context, id string) (*models.Job, error) {
	raw, err := s.queue.Get(ctx, s.recordKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *jobStoreImpl) Update(ctx context.Context, id string, upd JobUpdate) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "JobStore.Update")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	job, err := s.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if job == nil {
		s.logger.Warn("JobStore.Update: job expired or missing", zap.String("job_id", id))
		return nil, nil
	}

	statusChanged := false
	if upd.Status != nil && *upd.Status != job.Status {
		if !job.Status.CanTransitionTo(*upd.Status) {
			err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *upd.Status)
			span.RecordError(err)
			return nil, err
		}
		job.Status = *upd.Status
		statusChanged = true
	}
	if upd.CallbackAttempts != nil {
		job.CallbackAttempts = *upd.CallbackAttempts
	}
	if upd.ClearLastError {
		job.LastError = nil
	} else if upd.LastError != nil {
		msg := *upd.LastError
		job.LastError = &msg
	}
	job.UpdatedAt = s.now().UTC()

	// Le TTL reste calculé depuis la création
	remaining := job.CreatedAt.Add(s.cfg.TTL).Sub(job.UpdatedAt)
	if remaining <= 0 {
		s.logger.Warn("JobStore.Update: job retention window elapsed", zap.String("job_id", id))
		return nil, nil
	}
	if err := s.save(ctx, job, remaining); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if statusChanged {
		s.publish(ctx, job)
		s.logger.Debug("JobStore.Update: status changed",
			zap.String("job_id", id), zap.String("status", string(job.Status)))
	}
	return job, nil
}

func (s *jobStoreImpl) PurgeExpired(ctx context.Context) (int64, error) {
	expirer, ok := s.queue.(Expirer)
	if !ok {
		return 0, nil
	}

	ctx, span := s.tracer.Start(ctx, "JobStore.PurgeExpired")
	defer span.End()

	purged, err := expirer.PurgeExpired(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to purge expired jobs: %w", err)
	}
	return purged, nil
}

func (s *jobStoreImpl) save(ctx context.Context, job *models.Job, ttl time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := s.queue.Put(ctx, s.recordKey(job.ID), raw, ttl); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *jobStoreImpl) publish(ctx context.Context, job *models.Job) {
	if err := s.publisher.Publish(ctx, events.NewJobEvent(job, s.now().UTC())); err != nil {
		s.logger.Warn("JobStore: lifecycle event not published",
			zap.String("job_id", job.ID), zap.String("status", string(job.Status)), zap.Error(err))
	}
}
