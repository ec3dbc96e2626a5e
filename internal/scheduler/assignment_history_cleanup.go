package scheduler

import (
	"context"
	"time"

	"crm_backend/platform/logger"
)

const (
	defaultAssignmentCleanupInterval = time.Hour
	defaultSuccessRetention          = 90 * 24 * time.Hour
	defaultSkippedRetention          = 30 * 24 * time.Hour
)

// AssignmentHistoryPruner deletes old rows from the assignment history.
type AssignmentHistoryPruner interface {
	DeleteAssignmentRecordsBefore(ctx context.Context, successBefore, otherBefore time.Time) (int64, error)
}

// AssignmentHistoryCleanup periodically prunes old assignment history rows.
type AssignmentHistoryCleanup struct {
	repo             AssignmentHistoryPruner
	log              *logger.Logger
	interval         time.Duration
	successRetention time.Duration
	skippedRetention time.Duration
	now              func() time.Time
}

func NewAssignmentHistoryCleanup(repo AssignmentHistoryPruner, log *logger.Logger, interval, successRetention, skippedRetention time.Duration) *AssignmentHistoryCleanup {
	if interval <= 0 {
		interval = defaultAssignmentCleanupInterval
	}
	if successRetention <= 0 {
		successRetention = defaultSuccessRetention
	}
	if skippedRetention <= 0 {
		skippedRetention = defaultSkippedRetention
	}

	return &AssignmentHistoryCleanup{
		repo:             repo,
		log:              log,
		interval:         interval,
		successRetention: successRetention,
		skippedRetention: skippedRetention,
		now:              time.Now,
	}
}

func (c *AssignmentHistoryCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *AssignmentHistoryCleanup) cleanup(ctx context.Context) {
	now := c.now()
	deleted, err := c.repo.DeleteAssignmentRecordsBefore(ctx, now.Add(-c.successRetention), now.Add(-c.skippedRetention))
	if err != nil {
		c.log.Warn("assignment history cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("assignment history cleanup deleted rows", "deleted", deleted)
	}
}
