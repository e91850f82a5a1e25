package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signale un enregistrement absent ou expiré
	ErrNotFound = errors.New("record not found")
	// ErrQueueEmpty signale qu'aucune file n'a produit d'élément avant le timeout
	ErrQueueEmpty = errors.New("queue empty")
)

// DurableQueue est le stockage clé/valeur avec TTL et les files FIFO du job store.
// Push ajoute en queue de file; BlockingPop retire en tête.
type DurableQueue interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Push(ctx context.Context, queue string, value string) error
	// BlockingPop attend au plus timeout qu'une des files produise un élément.
	// Les files sont consultées dans l'ordre, à priorité égale.
	BlockingPop(ctx context.Context, queues []string, timeout time.Duration) (queue string, value string, err error)
}

// Expirer est implémenté par les backends qui n'expirent pas seuls leurs enregistrements
type Expirer interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
