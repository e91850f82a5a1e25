// Package events publie les événements de cycle de vie des jobs
// (Kafka ou RabbitMQ) à destination des consommateurs d'observabilité.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"go.uber.org/zap"
)

// Event est un changement de statut d'un job
type Event struct {
	Type       string           `json:"type"`
	JobID      string           `json:"job_id"`
	Kind       models.JobKind   `json:"kind"`
	Status     models.JobStatus `json:"status"`
	UserID     string           `json:"user_id"`
	Attempts   int              `json:"callback_attempts"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewJobEvent construit l'événement correspondant à l'état courant du job
func NewJobEvent(job *models.Job, at time.Time) Event {
	return Event{
		Type:       "job." + string(job.Status),
		JobID:      job.ID,
		Kind:       job.Kind,
		Status:     job.Status,
		UserID:     job.UserID,
		Attempts:   job.CallbackAttempts,
		OccurredAt: at,
	}
}

// Publisher envoie des événements vers un bus externe.
// Une erreur de publication ne doit jamais faire échouer un job.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher ignore tous les événements
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Config sélectionne et paramètre le backend
type Config struct {
	Backend        string
	KafkaBrokers   []string
	KafkaTopic     string
	RabbitURL      string
	RabbitExchange string
}

// NewPublisher crée le publisher correspondant au backend configuré
func NewPublisher(cfg Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka events backend requires at least one broker")
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	case "rabbitmq":
		return NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange, logger)
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.Backend)
	}
}
