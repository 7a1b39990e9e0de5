package job

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
)

// ReconcilerWorker periodically recomputes counters for running jobs,
// repairing any drift between the jobs table and the job call rows.
type ReconcilerWorker struct {
	WorkerPool *ants.Pool
	Engine     *Engine
}

func NewReconcilerWorker(engine *Engine) (*ReconcilerWorker, error) {
	workerPool, err := ants.NewPool(config.Conf.ReconcilerPoolSize, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	return &ReconcilerWorker{
		WorkerPool: workerPool,
		Engine:     engine,
	}, nil
}

func (reconcilerWorker *ReconcilerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(config.Conf.ReconcilerInterval) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcilerWorker.reconcileRunningJobs(ctx)
		}
	}
}

func (reconcilerWorker *ReconcilerWorker) reconcileRunningJobs(ctx context.Context) {
	jobs, err := reconcilerWorker.Engine.JobRepository.ListJobsByStatus(ctx, StatusRunning)
	if err != nil {
		return
	}

	if len(jobs) == 0 {
		return
	}

	logging.Logger.Info("start reconciling running jobs", zap.Int("count_jobs", len(jobs)))

	for idx := range jobs {
		job := jobs[idx]

		err := reconcilerWorker.WorkerPool.Submit(func() {
			_, reconcileErr := reconcilerWorker.Engine.Reconcile(ctx, job.ID)
			if reconcileErr != nil {
				logging.Logger.Error("failed to reconcile job",
					zap.String("job_id", job.ID),
					zap.String("error", reconcileErr.Error()),
				)
			}
		})
		if err != nil {
			logging.Logger.Error("failed to submit reconciler pool",
				zap.String("job_id", job.ID),
				zap.String("error", err.Error()),
			)
		}
	}
}
