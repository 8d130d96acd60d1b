package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ProgressPurger removes playback progress older than its TTL.
type ProgressPurger interface {
	PurgeExpiredProgress() (int, error)
}

// ProgressSweepJob deletes stale playback progress.
type ProgressSweepJob struct {
	purger ProgressPurger
	log    *zap.Logger
}

func NewProgressSweepJob(purger ProgressPurger, logger *zap.Logger) *ProgressSweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressSweepJob{purger: purger, log: logger}
}

func (j *ProgressSweepJob) Name() string {
	return "progress_sweep"
}

func (j *ProgressSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := j.purger.PurgeExpiredProgress()
	if err != nil {
		return fmt.Errorf("failed to purge expired progress: %w", err)
	}
	j.log.Info("Progress sweep complete", zap.Int("removed", removed))
	return nil
}
