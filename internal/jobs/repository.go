package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const popQuery = `DELETE FROM queue_items
WHERE id = (
	SELECT id FROM queue_items
	WHERE queue = ?
	ORDER BY id
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, queue, value, created_at`

// PostgresQueue implémente DurableQueue sur deux tables gorm.
// BlockingPop interroge les files à intervalle fixe jusqu'au timeout.
type PostgresQueue struct {
	db           *gorm.DB
	pollInterval time.Duration
	now          func() time.Time
}

func NewPostgresQueue(db *gorm.DB) *PostgresQueue {
	return &PostgresQueue{
		db:           db,
		pollInterval: 200 * time.Millisecond,
		now:          time.Now,
	}
}

func (r *PostgresQueue) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now()
	rec := models.JobRecord{
		Key:       key,
		Payload:   value,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", key, err)
	}
	return nil
}

func (r *PostgresQueue) Get(ctx context.Context, key string) ([]byte, error) {
	var rec models.JobRecord
	err := r.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, r.now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return rec.Payload, nil
}

func (r *PostgresQueue) Push(ctx context.Context, queue string, value string) error {
	item := models.QueueItem{Queue: queue, Value: value}
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return fmt.Errorf("failed to push to %s: %w", queue, err)
	}
	return nil
}

func (r *PostgresQueue) BlockingPop(ctx context.Context, queues []string, timeout time.Duration) (string, string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		for _, queue := range queues {
			var items []models.QueueItem
			if err := r.db.WithContext(ctx).Raw(popQuery, queue).Scan(&items).Error; err != nil {
				return "", "", fmt.Errorf("failed to pop from %s: %w", queue, err)
			}
			if len(items) > 0 {
				return items[0].Queue, items[0].Value, nil
			}
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return "", "", ErrQueueEmpty
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
}

// PurgeExpired supprime les enregistrements dont le TTL est écoulé
func (r *PostgresQueue) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now()).
		Delete(&models.JobRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
