package jobs

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// MemoryQueue est l'implémentation en mémoire de DurableQueue (tests, mode local)
type MemoryQueue struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	queues  map[string][]string
	notify  chan struct{}
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		records: make(map[string]memoryRecord),
		queues:  make(map[string][]string),
		notify:  make(chan struct{}),
		now:     time.Now,
	}
}

func (q *MemoryQueue) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	q.records[key] = memoryRecord{value: stored, expiresAt: q.now().Add(ttl)}
	return nil
}

func (q *MemoryQueue) Get(_ context.Context, key string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !q.now().Before(rec.expiresAt) {
		delete(q.records, key)
		return nil, ErrNotFound
	}
	value := make([]byte, len(rec.value))
	copy(value, rec.value)
	return value, nil
}

func (q *MemoryQueue) Push(_ context.Context, queue string, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queues[queue] = append(q.queues[queue], value)
	// Réveille tous les consommateurs en attente
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (q *MemoryQueue) BlockingPop(ctx context.Context, queues []string, timeout time.Duration) (string, string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		for _, name := range queues {
			items := q.queues[name]
			if len(items) > 0 {
				value := items[0]
				q.queues[name] = items[1:]
				q.mu.Unlock()
				return name, value, nil
			}
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			return "", "", ErrQueueEmpty
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
}

// PurgeExpired supprime les enregistrements expirés
func (q *MemoryQueue) PurgeExpired(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var purged int64
	now := q.now()
	for key, rec := range q.records {
		if !now.Before(rec.expiresAt) {
			delete(q.records, key)
			purged++
		}
	}
	return purged, nil
}

// Len retourne le nombre d'éléments en attente dans une file
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}
