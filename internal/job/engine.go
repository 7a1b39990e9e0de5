package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/panjf2000/ants/v2"
	"github.com/voqo-ai/voqo/internal/agent"
	"github.com/voqo-ai/voqo/internal/call"
	"github.com/voqo-ai/voqo/internal/campaign"
	"github.com/voqo-ai/voqo/internal/config"
	"github.com/voqo-ai/voqo/internal/logging"
	"github.com/voqo-ai/voqo/internal/metrics"
	"github.com/voqo-ai/voqo/internal/template"
	"go.uber.org/zap"
)

var (
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrUploadNotFound         = errors.New("upload not found")
	ErrUploadCampaignMismatch = errors.New("upload does not belong to campaign")
	ErrAgentNotFound          = errors.New("agent not found")
	ErrAgentDisabled          = errors.New("agent is disabled")
	ErrEmptyUpload            = errors.New("upload has no batch contacts")
	ErrJobNotFound            = errors.New("job not found")
	ErrJobNotStartable        = errors.New("job is not in pending status")
	ErrJobNotCancellable      = errors.New("job is already terminal")
)

// DialRequest carries everything the telephony provider needs to place
// one outbound call.
type DialRequest struct {
	AgentExternalID string
	ToPhone         string
	FromPhone       string
	Prompt          string
	Greeting        string
	Variables       map[string]string
	Functions       []agent.CustomFunction
}

// Dialer places a single outbound call and returns the provider's
// conversation identifier. A successful return means the provider
// accepted the call, not that anyone answered.
type Dialer interface {
	PlaceCall(ctx context.Context, request DialRequest) (string, error)
}

// Engine owns the job lifecycle: creation, dispatch, cancellation and
// counter reconciliation. Dispatch fans out over a shared worker pool.
type Engine struct {
	JobRepository      *JobRepository
	CampaignRepository *campaign.CampaignRepository
	AgentRepository    *agent.AgentRepository
	CallRepository     *call.CallRepository
	Dialer             Dialer
	pool               *ants.Pool
}

func NewEngine(
	jobRepository *JobRepository,
	campaignRepository *campaign.CampaignRepository,
	agentRepository *agent.AgentRepository,
	callRepository *call.CallRepository,
	dialer Dialer,
) (*Engine, error) {
	pool, err := ants.NewPool(config.Conf.JobPoolSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		JobRepository:      jobRepository,
		CampaignRepository: campaignRepository,
		AgentRepository:    agentRepository,
		CallRepository:     callRepository,
		Dialer:             dialer,
		pool:               pool,
	}, nil
}

func (engine *Engine) Release() {
	engine.pool.Release()
}

// CreateJob validates the campaign, upload and agent, then persists the
// job in pending with one pending job call per batch contact. Nothing
// is dialed until Start.
func (engine *Engine) CreateJob(ctx context.Context, campaignID, uploadID, agentID string) (*Job, error) {
	campaignRecord, err := engine.CampaignRepository.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if campaignRecord == nil {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
	}

	upload, err := engine.CampaignRepository.GetUploadByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if upload == nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}

	if upload.CampaignID != campaignID {
		return nil, fmt.Errorf("%w: upload %s", ErrUploadCampaignMismatch, uploadID)
	}

	agentRecord, err := engine.AgentRepository.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if agentRecord == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	if !agentRecord.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrAgentDisabled, agentID)
	}

	batchContacts, err := engine.CampaignRepository.ListBatchContacts(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if len(batchContacts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyUpload, uploadID)
	}

	jobCalls := make([]JobCall, len(batchContacts))
	for idx, batchContact := range batchContacts {
		jobCalls[idx] = JobCall{BatchContactID: batchContact.ID}
	}

	job := &Job{
		CampaignID: campaignID,
		UploadID:   uploadID,
		AgentID:    agentID,
	}

	created, err := engine.JobRepository.CreateJobWithCalls(ctx, job, jobCalls)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("[CreateJob] Job created",
		zap.String("job_id", created.ID),
		zap.String("campaign_id", campaignID),
		zap.Int("total_calls", created.TotalCalls),
	)

	return created, nil
}

// Start moves the job from pending to running and dispatches its job
// calls. It returns once every job call has reached a terminal status
// or dispatch has stopped; callers that want fire-and-forget wrap it in
// a goroutine.
func (engine *Engine) Start(ctx context.Context, jobID string) error {
	job, err := engine.JobRepository.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	now := time.Now()

	started, err := engine.JobRepository.TransitionJob(
		ctx, jobID,
		[]string{StatusPending}, StatusRunning,
		map[string]any{"started_at": &now},
	)
	if err != nil {
		return err
	}

	if !started {
		return fmt.Errorf("%w: %s is %s", ErrJobNotStartable, jobID, job.Status)
	}

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	logging.Logger.Info("[Start] Job started",
		zap.String("job_id", jobID),
		zap.Int("total_calls", job.TotalCalls),
	)

	return engine.execute(ctx, job)
}

// Cancel is a terminal, irreversible stop order. Job calls that have
// not started are force-failed and counted; in-flight calls finish
// naturally and their outcomes still land.
func (engine *Engine) Cancel(ctx context.Context, jobID string) error {
	job, err := engine.JobRepository.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	now := time.Now()

	cancelled, err := engine.JobRepository.TransitionJob(
		ctx, jobID,
		[]string{StatusPending, StatusRunning}, StatusCancelled,
		map[string]any{"finished_at": &now},
	)
	if err != nil {
		return err
	}

	if !cancelled {
		return fmt.Errorf("%w: %s is %s", ErrJobNotCancellable, jobID, job.Status)
	}

	failed, err := engine.JobRepository.FailPendingJobCalls(ctx, jobID, CancelledErrorMessage)
	if err != nil {
		return err
	}

	logging.Logger.Info("[Cancel] Job cancelled",
		zap.String("job_id", jobID),
		zap.Int("force_failed", failed),
	)

	return nil
}

// Reconcile recomputes the job's counters from its job call rows,
// raises the stored counters when they lag the rows, and finalizes the
// job if the recomputed tally settles it. Safe to run at any time,
// including against jobs with workers mid-dispatch: the forward-only
// counter write means a stale recount is a no-op, never a regression.
func (engine *Engine) Reconcile(ctx context.Context, jobID string) (Counters, error) {
	job, err := engine.JobRepository.GetJobByID(ctx, jobID)
	if err != nil {
		return Counters{}, err
	}

	if job == nil {
		return Counters{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	counters, err := engine.JobRepository.CountJobCallOutcomes(ctx, jobID)
	if err != nil {
		return Counters{}, err
	}

	repaired, err := engine.JobRepository.SetJobCounters(ctx, jobID, counters)
	if err != nil {
		return Counters{}, err
	}

	if repaired {
		logging.Logger.Warn("[Reconcile] Counters lagged job call rows",
			zap.String("job_id", jobID),
			zap.Int("completed", counters.Completed),
			zap.Int("failed", counters.Failed),
		)
	}

	if job.Status == StatusRunning && counters.Settled() {
		finalized, err := engine.JobRepository.CompleteJobIfSettled(ctx, jobID)
		if err != nil {
			return Counters{}, err
		}

		if finalized {
			logging.Logger.Info("[Reconcile] Job finalized by reconciliation",
				zap.String("job_id", jobID),
			)
		}
	}

	return counters, nil
}

func (engine *Engine) execute(ctx context.Context, job *Job) error {
	agentRecord, err := engine.AgentRepository.GetAgentByID(ctx, job.AgentID)
	if err != nil {
		return engine.failJobForStorageError(ctx, job.ID, err)
	}

	if agentRecord == nil || !agentRecord.Enabled {
		return engine.failJob(ctx, job.ID, "agent unavailable at dispatch")
	}

	functions, err := engine.AgentRepository.ListEnabledFunctions(ctx, job.AgentID)
	if err != nil {
		return engine.failJobForStorageError(ctx, job.ID, err)
	}

	batchContacts, err := engine.CampaignRepository.ListBatchContacts(ctx, job.UploadID)
	if err != nil {
		return engine.failJobForStorageError(ctx, job.ID, err)
	}

	contactsByID := make(map[string]campaign.BatchContact, len(batchContacts))
	for _, batchContact := range batchContacts {
		contactsByID[batchContact.ID] = batchContact
	}

	jobCalls, err := engine.JobRepository.ListJobCalls(ctx, job.ID)
	if err != nil {
		return engine.failJobForStorageError(ctx, job.ID, err)
	}

	var (
		waitGroup sync.WaitGroup
		stopped   atomic.Bool
	)

	for idx := range jobCalls {
		jobCall := jobCalls[idx]

		if stopped.Load() {
			break
		}

		batchContact, found := contactsByID[jobCall.BatchContactID]
		if !found {
			claimed, claimErr := engine.JobRepository.ClaimJobCall(ctx, jobCall.ID)
			if claimErr == nil && claimed {
				_ = engine.failJobCall(ctx, job.ID, jobCall.ID, "batch contact missing")
			}

			continue
		}

		waitGroup.Add(1)

		submitErr := engine.pool.Submit(func() {
			defer waitGroup.Done()
			engine.dispatchJobCall(ctx, job, agentRecord, functions, jobCall, batchContact, &stopped)
		})
		if submitErr != nil {
			waitGroup.Done()
			logging.Logger.Error("[execute] Failed to submit job call to pool",
				zap.String("job_call_id", jobCall.ID),
				zap.String("error", submitErr.Error()),
			)

			// Settle the job call as failed so the job still converges.
			claimed, claimErr := engine.JobRepository.ClaimJobCall(ctx, jobCall.ID)
			if claimErr == nil && claimed {
				_ = engine.failJobCall(ctx, job.ID, jobCall.ID, "worker pool rejected job call")
			}
		}
	}

	waitGroup.Wait()

	_, err = engine.JobRepository.CompleteJobIfSettled(ctx, job.ID)

	return err
}

// dispatchJobCall processes one job call end to end: claim, dial,
// record the call row and settle the counters. A job call is completed
// once the provider accepts the call; the call's own outcome arrives
// later over the webhook.
func (engine *Engine) dispatchJobCall(
	ctx context.Context,
	job *Job,
	agentRecord *agent.Agent,
	functions []agent.CustomFunction,
	jobCall JobCall,
	batchContact campaign.BatchContact,
	stopped *atomic.Bool,
) {
	current, err := engine.JobRepository.GetJobByID(ctx, job.ID)
	if err != nil {
		stopped.Store(true)
		_ = engine.failJobForStorageError(ctx, job.ID, err)

		return
	}

	if current == nil || current.Status != StatusRunning {
		stopped.Store(true)

		return
	}

	liveAgent, err := engine.AgentRepository.GetAgentByID(ctx, job.AgentID)
	if err != nil {
		stopped.Store(true)
		_ = engine.failJobForStorageError(ctx, job.ID, err)

		return
	}

	if liveAgent == nil || !liveAgent.Enabled {
		stopped.Store(true)
		_ = engine.failJob(ctx, job.ID, "agent disabled mid-run")

		return
	}

	claimed, err := engine.JobRepository.ClaimJobCall(ctx, jobCall.ID)
	if err != nil || !claimed {
		return
	}

	variables := batchContactVariables(batchContact)

	request := DialRequest{
		AgentExternalID: agentRecord.ElevenLabsAgentID,
		ToPhone:         batchContact.Phone,
		FromPhone:       config.Conf.OutboundCallerPhone,
		Prompt:          template.Render(agentRecord.SystemPrompt, variables),
		Greeting:        template.Render(agentRecord.GreetingMessage, variables),
		Variables:       variables,
		Functions:       functions,
	}

	dialStart := time.Now()

	conversationID, err := engine.Dialer.PlaceCall(ctx, request)
	if err != nil {
		metrics.CallDispatchDuration.WithLabelValues("failed").Observe(time.Since(dialStart).Seconds())

		logging.Logger.Warn("[dispatchJobCall] Call placement failed",
			zap.String("job_call_id", jobCall.ID),
			zap.String("to_phone", batchContact.Phone),
			zap.String("error", err.Error()),
		)

		_ = engine.failJobCall(ctx, job.ID, jobCall.ID, err.Error())

		return
	}

	metrics.CallDispatchDuration.WithLabelValues("dispatched").Observe(time.Since(dialStart).Seconds())

	callRecord, err := engine.CallRepository.CreateCall(ctx, &call.Call{
		AgentID:                  job.AgentID,
		ElevenLabsConversationID: conversationID,
		Direction:                call.DirectionOutbound,
		Status:                   call.StatusInProgress,
		FromPhone:                config.Conf.OutboundCallerPhone,
		ToPhone:                  batchContact.Phone,
	})
	if err != nil {
		_ = engine.failJobCall(ctx, job.ID, jobCall.ID, "failed to record call: "+err.Error())

		return
	}

	settled, err := engine.JobRepository.SettleJobCallDispatched(ctx, job.ID, jobCall.ID, callRecord.ID)
	if err != nil || !settled {
		return
	}

	metrics.JobCallOutcomes.WithLabelValues(CallStatusCompleted).Inc()

	_, _ = engine.JobRepository.CompleteJobIfSettled(ctx, job.ID)
}

// failJobCall settles one claimed job call as failed, bumping the
// job's failed counter in the same transaction.
func (engine *Engine) failJobCall(ctx context.Context, jobID, jobCallID, errorMessage string) error {
	settled, err := engine.JobRepository.SettleJobCallFailed(ctx, jobID, jobCallID, errorMessage)
	if err != nil {
		return err
	}

	if settled {
		metrics.JobCallOutcomes.WithLabelValues(CallStatusFailed).Inc()
	}

	_, err = engine.JobRepository.CompleteJobIfSettled(ctx, jobID)

	return err
}

// failJobForStorageError escalates a storage fault to job-level failed,
// best effort, and hands the original error back to the caller.
func (engine *Engine) failJobForStorageError(ctx context.Context, jobID string, cause error) error {
	_ = engine.failJob(ctx, jobID, "storage error: "+cause.Error())

	return cause
}

// failJob marks a running job failed for an engine-level fault. Job
// calls that never started stay pending so the failure is auditable.
func (engine *Engine) failJob(ctx context.Context, jobID, reason string) error {
	now := time.Now()

	failed, err := engine.JobRepository.TransitionJob(
		ctx, jobID,
		[]string{StatusRunning}, StatusFailed,
		map[string]any{"finished_at": &now},
	)
	if err != nil {
		return err
	}

	if failed {
		logging.Logger.Error("[failJob] Job failed",
			zap.String("job_id", jobID),
			zap.String("reason", reason),
		)
	}

	return nil
}

func batchContactVariables(batchContact campaign.BatchContact) map[string]string {
	variables := make(map[string]string)

	if len(batchContact.Variables) > 0 {
		err := json.Unmarshal(batchContact.Variables, &variables)
		if err != nil {
			logging.Logger.Warn("[batchContactVariables] Malformed variables payload",
				zap.String("batch_contact_id", batchContact.ID),
				zap.String("error", err.Error()),
			)
		}
	}

	variables["name"] = batchContact.Name
	variables["phone"] = batchContact.Phone

	return variables
}
