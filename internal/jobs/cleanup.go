package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"

	"go.uber.org/zap"
)

// CleanupTask est une tâche de ménage retournant le nombre d'éléments supprimés
type CleanupTask struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// CleanupService exécute les tâches de ménage au plus une fois par intervalle.
// Il est appelé depuis la boucle du worker plutôt que depuis un ticker dédié.
type CleanupService struct {
	tasks    []CleanupTask
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

func NewCleanupService(interval time.Duration, log *zap.Logger, tasks ...CleanupTask) *CleanupService {
	return &CleanupService{
		tasks:    tasks,
		interval: interval,
		logger:   logger.OrNop(log).Named("cleanup"),
		now:      time.Now,
	}
}

// RunIfDue lance les tâches si l'intervalle est écoulé depuis la dernière exécution.
// Le premier appel s'exécute immédiatement. Retourne true si les tâches ont tourné.
func (c *CleanupService) RunIfDue(ctx context.Context) bool {
	c.mu.Lock()
	now := c.now()
	if !c.lastRun.IsZero() && now.Sub(c.lastRun) < c.interval {
		c.mu.Unlock()
		return false
	}
	c.lastRun = now
	c.mu.Unlock()

	c.RunOnce(ctx)
	return true
}

// RunOnce exécute toutes les tâches; une erreur est journalisée et n'interrompt pas les suivantes
func (c *CleanupService) RunOnce(ctx context.Context) {
	for _, task := range c.tasks {
		removed, err := task.Run(ctx)
		if err != nil {
			c.logger.Error("Cleanup error", zap.String("task", task.Name), zap.Error(err))
			continue
		}
		if removed > 0 {
			c.logger.Info("Cleanup completed", zap.String("task", task.Name), zap.Int64("removed", removed))
		}
	}
}
