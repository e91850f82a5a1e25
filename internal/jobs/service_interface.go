package jobs

import (
	"context"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"
)

// JobStore possède les enregistrements de jobs et leur cycle de vie
type JobStore interface {
	// Enqueue persiste un job accepted puis pousse son id en queue de la file du kind
	Enqueue(ctx context.Context, kind models.JobKind, sub *models.Submission) (string, error)
	// Dequeue retourne nil, nil lorsque aucun job n'est disponible avant le timeout
	Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, error)
	// Get retourne nil, nil si le job n'existe pas ou a expiré
	Get(ctx context.Context, id string) (*models.Job, error)
	// Update applique une mise à jour partielle; nil, nil si le job a expiré
	Update(ctx context.Context, id string, upd JobUpdate) (*models.Job, error)
	// PurgeExpired supprime les enregistrements expirés lorsque le backend ne le fait pas seul
	PurgeExpired(ctx context.Context) (int64, error)
}

// JobUpdate décrit une mise à jour partielle; les champs nil sont ignorés
type JobUpdate struct {
	Status           *models.JobStatus
	CallbackAttempts *int
	LastError        *string
	ClearLastError   bool
}

// StatusUpdate construit une mise à jour de statut
func StatusUpdate(status models.JobStatus) JobUpdate {
	return JobUpdate{Status: &status}
}

// WithAttempts fixe le compteur de tentatives de livraison
func (u JobUpdate) WithAttempts(n int) JobUpdate {
	u.CallbackAttempts = &n
	return u
}

// WithError fixe le dernier message d'erreur
func (u JobUpdate) WithError(msg string) JobUpdate {
	u.LastError = &msg
	u.ClearLastError = false
	return u
}

// WithoutError efface le dernier message d'erreur
func (u JobUpdate) WithoutError() JobUpdate {
	u.LastError = nil
	u.ClearLastError = true
	return u
}

// StoreConfig contient les clés et le TTL du job store
type StoreConfig struct {
	RecordPrefix string
	QueueKeys    map[models.JobKind]string
	TTL          time.Duration
}
