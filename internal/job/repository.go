package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/voqo-ai/voqo/internal/database"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidJobResult     = errors.New("invalid result type, it should be pointer to Job struct")
	ErrInvalidJobCallResult = errors.New("invalid result type, it should be slice of JobCall")
)

type JobRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *JobRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &JobRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

// CreateJobWithCalls inserts the job and one pending job call per batch
// contact in a single transaction, preserving source-file row order.
// No calls are placed here.
func (jobRepository *JobRepository) CreateJobWithCalls(
	ctx context.Context,
	job *Job,
	jobCalls []JobCall,
) (*Job, error) {
	result, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		err := jobRepository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if job.ID == "" {
				job.ID = uuid.NewString()
			}

			job.Status = StatusPending
			job.TotalCalls = len(jobCalls)
			job.CompletedCalls = 0
			job.FailedCalls = 0

			err := tx.Create(job).Error
			if err != nil {
				return err
			}

			for idx := range jobCalls {
				jobCalls[idx].ID = uuid.NewString()
				jobCalls[idx].JobID = job.ID
				jobCalls[idx].RowIndex = idx
				jobCalls[idx].Status = CallStatusPending
			}

			return tx.Create(&jobCalls).Error
		})
		if err != nil {
			logging.Logger.Error("[CreateJobWithCalls] Failed to create job",
				zap.String("campaign_id", job.CampaignID),
				zap.String("upload_id", job.UploadID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return job, nil
	})
	if err != nil {
		return nil, err
	}

	created, ok := result.(*Job)
	if !ok {
		return nil, ErrInvalidJobResult
	}

	return created, nil
}

// GetJobByID returns the job, or nil when no such job exists.
func (jobRepository *JobRepository) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	result, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		var job Job

		err := jobRepository.DBConn.WithContext(ctx).
			Where("id = ?", jobID).
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Job)(nil), nil
		}

		if err != nil {
			logging.Logger.Error("[GetJobByID] Failed to fetch job",
				zap.String("job_id", jobID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &job, nil
	})
	if err != nil {
		return nil, err
	}

	job, ok := result.(*Job)
	if !ok {
		return nil, ErrInvalidJobResult
	}

	return job, nil
}

// TransitionJob moves a job from one of the expected statuses to the
// next one. It reports false when the job was not in an expected
// status, which makes illegal transitions no-ops rather than errors.
func (jobRepository *JobRepository) TransitionJob(
	ctx context.Context,
	jobID string,
	from []string,
	to string,
	extraUpdates map[string]any,
) (bool, error) {
	applied, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		updates := map[string]any{"status": to}
		for column, value := range extraUpdates {
			updates[column] = value
		}

		tx := jobRepository.DBConn.WithContext(ctx).
			Model(&Job{}).
			Where("id = ? AND status IN ?", jobID, from).
			Updates(updates)
		if tx.Error != nil {
			logging.Logger.Error("[TransitionJob] Failed to transition job",
				zap.String("job_id", jobID),
				zap.String("to", to),
				zap.String("error", tx.Error.Error()),
			)

			return false, tx.Error
		}

		return tx.RowsAffected > 0, nil
	})
	if err != nil {
		return false, err
	}

	ok, isBool := applied.(bool)
	if !isBool {
		return false, ErrInvalidJobResult
	}

	return ok, nil
}

// CompleteJobIfSettled finalizes a running job once its counters
// account for every job call. The condition lives in the UPDATE so
// concurrent completion handlers cannot double-finalize.
func (jobRepository *JobRepository) CompleteJobIfSettled(ctx context.Context, jobID string) (bool, error) {
	applied, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		now := time.Now()

		tx := jobRepository.DBConn.WithContext(ctx).
			Model(&Job{}).
			Where(
				"id = ? AND status = ? AND completed_calls + failed_calls >= total_calls",
				jobID, StatusRunning,
			).
			Updates(map[string]any{
				"status":      StatusCompleted,
				"finished_at": &now,
			})
		if tx.Error != nil {
			return false, tx.Error
		}

		return tx.RowsAffected > 0, nil
	})
	if err != nil {
		return false, err
	}

	ok, isBool := applied.(bool)
	if !isBool {
		return false, ErrInvalidJobResult
	}

	return ok, nil
}

// ListJobCalls returns the job calls in creation (row) order.
func (jobRepository *JobRepository) ListJobCalls(ctx context.Context, jobID string) ([]JobCall, error) {
	result, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		var jobCalls []JobCall

		err := jobRepository.DBConn.WithContext(ctx).
			Where("job_id = ?", jobID).
			Order("row_index ASC").
			Find(&jobCalls).Error
		if err != nil {
			return nil, err
		}

		return jobCalls, nil
	})
	if err != nil {
		return nil, err
	}

	jobCalls, ok := result.([]JobCall)
	if !ok {
		return nil, ErrInvalidJobCallResult
	}

	return jobCalls, nil
}

// ClaimJobCall moves one job call from pending to calling. Exactly one
// worker can win the claim; everyone else sees false.
func (jobRepository *JobRepository) ClaimJobCall(ctx context.Context, jobCallID string) (bool, error) {
	applied, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		tx := jobRepository.DBConn.WithContext(ctx).
			Model(&JobCall{}).
			Where("id = ? AND status = ?", jobCallID, CallStatusPending).
			Update("status", CallStatusCalling)
		if tx.Error != nil {
			return false, tx.Error
		}

		return tx.RowsAffected > 0, nil
	})
	if err != nil {
		return false, err
	}

	ok, isBool := applied.(bool)
	if !isBool {
		return false, ErrInvalidJobCallResult
	}

	return ok, nil
}

// SettleJobCallDispatched records a successful placement: the job call
// is linked to its call row, becomes terminal and bumps the completed
// counter, all in one transaction so a concurrent recount can never
// observe the row without its counter.
func (jobRepository *JobRepository) SettleJobCallDispatched(
	ctx context.Context,
	jobID, jobCallID, callID string,
) (bool, error) {
	return jobRepository.settleJobCall(ctx, jobID, jobCallID, "completed_calls", map[string]any{
		"status":  CallStatusCompleted,
		"call_id": callID,
	})
}

// SettleJobCallFailed records a placement failure with its
// human-readable cause and bumps the failed counter atomically.
func (jobRepository *JobRepository) SettleJobCallFailed(
	ctx context.Context,
	jobID, jobCallID, errorMessage string,
) (bool, error) {
	return jobRepository.settleJobCall(ctx, jobID, jobCallID, "failed_calls", map[string]any{
		"status":        CallStatusFailed,
		"error_message": errorMessage,
	})
}

func (jobRepository *JobRepository) settleJobCall(
	ctx context.Context,
	jobID, jobCallID, counterColumn string,
	jobCallUpdates map[string]any,
) (bool, error) {
	applied, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		settled := false

		err := jobRepository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&JobCall{}).
				Where("id = ? AND status = ?", jobCallID, CallStatusCalling).
				Updates(jobCallUpdates)
			if result.Error != nil {
				return result.Error
			}

			if result.RowsAffected == 0 {
				return nil
			}

			settled = true

			return tx.Model(&Job{}).
				Where("id = ?", jobID).
				Update(counterColumn, gorm.Expr(counterColumn+" + 1")).Error
		})
		if err != nil {
			logging.Logger.Error("[settleJobCall] Failed to settle job call",
				zap.String("job_call_id", jobCallID),
				zap.String("error", err.Error()),
			)

			return false, err
		}

		return settled, nil
	})
	if err != nil {
		return false, err
	}

	ok, isBool := applied.(bool)
	if !isBool {
		return false, ErrInvalidJobCallResult
	}

	return ok, nil
}

// FailPendingJobCalls force-fails every job call that has not started
// yet and adds them to the failed counter in one transaction, returning
// how many were failed. Used only by cancellation; in-flight calls are
// left to finish naturally.
func (jobRepository *JobRepository) FailPendingJobCalls(
	ctx context.Context,
	jobID, errorMessage string,
) (int, error) {
	count, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		failed := 0

		err := jobRepository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&JobCall{}).
				Where("job_id = ? AND status = ?", jobID, CallStatusPending).
				Updates(map[string]any{
					"status":        CallStatusFailed,
					"error_message": errorMessage,
				})
			if result.Error != nil {
				return result.Error
			}

			failed = int(result.RowsAffected)
			if failed == 0 {
				return nil
			}

			return tx.Model(&Job{}).
				Where("id = ?", jobID).
				Update("failed_calls", gorm.Expr("failed_calls + ?", failed)).Error
		})
		if err != nil {
			logging.Logger.Error("[FailPendingJobCalls] Failed to force-fail job calls",
				zap.String("job_id", jobID),
				zap.String("error", err.Error()),
			)

			return 0, err
		}

		return failed, nil
	})
	if err != nil {
		return 0, err
	}

	failed, ok := count.(int)
	if !ok {
		return 0, ErrInvalidJobCallResult
	}

	return failed, nil
}

// CountJobCallOutcomes recomputes the job's counters from its job call
// rows. Repair path only; never used for progress reporting.
func (jobRepository *JobRepository) CountJobCallOutcomes(ctx context.Context, jobID string) (Counters, error) {
	var counters Counters

	_, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		type row struct {
			Status string
			N      int
		}

		var rows []row

		err := jobRepository.DBConn.WithContext(ctx).
			Model(&JobCall{}).
			Select("status, count(*) as n").
			Where("job_id = ?", jobID).
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			counters.Total += r.N

			switch r.Status {
			case CallStatusCompleted:
				counters.Completed += r.N
			case CallStatusFailed:
				counters.Failed += r.N
			}
		}

		return nil, nil
	})
	if err != nil {
		return Counters{}, err
	}

	return counters, nil
}

// SetJobCounters raises the counters to a recomputed tally, used by
// reconciliation. The guard makes the overwrite forward-only: a recount
// taken while workers were still settling is stale by the time it lands
// and must never regress counters that advanced past it.
func (jobRepository *JobRepository) SetJobCounters(ctx context.Context, jobID string, counters Counters) (bool, error) {
	applied, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		tx := jobRepository.DBConn.WithContext(ctx).
			Model(&Job{}).
			Where(
				"id = ? AND completed_calls + failed_calls < ?",
				jobID, counters.Completed+counters.Failed,
			).
			Updates(map[string]any{
				"completed_calls": counters.Completed,
				"failed_calls":    counters.Failed,
			})
		if tx.Error != nil {
			return false, tx.Error
		}

		return tx.RowsAffected > 0, nil
	})
	if err != nil {
		return false, err
	}

	ok, isBool := applied.(bool)
	if !isBool {
		return false, ErrInvalidJobResult
	}

	return ok, nil
}

// ListJobsByStatus returns jobs in a given status, oldest first.
func (jobRepository *JobRepository) ListJobsByStatus(ctx context.Context, status string) ([]Job, error) {
	result, err := jobRepository.CircuitBreaker.Execute(func() (any, error) {
		var jobs []Job

		err := jobRepository.DBConn.WithContext(ctx).
			Where("status = ?", status).
			Order("created_at ASC").
			Find(&jobs).Error
		if err != nil {
			return nil, err
		}

		return jobs, nil
	})
	if err != nil {
		return nil, err
	}

	jobs, ok := result.([]Job)
	if !ok {
		return nil, ErrInvalidJobResult
	}

	return jobs, nil
}
