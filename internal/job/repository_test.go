package job

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, repository *JobRepository, calls int) *Job {
	t.Helper()

	jobCalls := make([]JobCall, calls)
	for idx := range jobCalls {
		jobCalls[idx] = JobCall{BatchContactID: uuid.NewString()}
	}

	created, err := repository.CreateJobWithCalls(context.Background(), &Job{
		CampaignID: uuid.NewString(),
		UploadID:   uuid.NewString(),
		AgentID:    uuid.NewString(),
	}, jobCalls)
	require.NoError(t, err)

	return created
}

func TestTransitionJobIsGuarded(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 1)

	ok, err := repository.TransitionJob(ctx, created.ID, []string{StatusRunning}, StatusCompleted, nil)
	require.NoError(t, err)
	require.False(t, ok, "pending job cannot jump to completed")

	ok, err = repository.TransitionJob(ctx, created.ID, []string{StatusPending}, StatusRunning, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repository.TransitionJob(ctx, created.ID, []string{StatusPending}, StatusRunning, nil)
	require.NoError(t, err)
	require.False(t, ok, "transition is not repeatable")

	current, err := repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, current.Status)
}

func TestClaimJobCallHasSingleWinner(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 1)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, jobCalls, 1)

	first, err := repository.ClaimJobCall(ctx, jobCalls[0].ID)
	require.NoError(t, err)
	require.True(t, first)

	second, err := repository.ClaimJobCall(ctx, jobCalls[0].ID)
	require.NoError(t, err)
	require.False(t, second)
}

func TestSettleJobCallMovesRowAndCounterTogether(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 3)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)

	for _, jobCall := range jobCalls[:2] {
		claimed, err := repository.ClaimJobCall(ctx, jobCall.ID)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	settled, err := repository.SettleJobCallDispatched(ctx, created.ID, jobCalls[0].ID, uuid.NewString())
	require.NoError(t, err)
	require.True(t, settled)

	settled, err = repository.SettleJobCallFailed(ctx, created.ID, jobCalls[1].ID, "provider rejected call")
	require.NoError(t, err)
	require.True(t, settled)

	current, err := repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.CompletedCalls)
	require.Equal(t, 1, current.FailedCalls)

	// Settling an already-terminal job call changes nothing.
	settled, err = repository.SettleJobCallDispatched(ctx, created.ID, jobCalls[0].ID, uuid.NewString())
	require.NoError(t, err)
	require.False(t, settled)

	// Nor does settling one that was never claimed.
	settled, err = repository.SettleJobCallFailed(ctx, created.ID, jobCalls[2].ID, "nope")
	require.NoError(t, err)
	require.False(t, settled)

	current, err = repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.CompletedCalls)
	require.Equal(t, 1, current.FailedCalls)
}

func TestCompleteJobIfSettledGuards(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 2)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)

	// Not running yet.
	done, err := repository.CompleteJobIfSettled(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, done)

	ok, err := repository.TransitionJob(ctx, created.ID, []string{StatusPending}, StatusRunning, nil)
	require.NoError(t, err)
	require.True(t, ok)

	for _, jobCall := range jobCalls {
		claimed, err := repository.ClaimJobCall(ctx, jobCall.ID)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	// Running but not settled.
	settled, err := repository.SettleJobCallDispatched(ctx, created.ID, jobCalls[0].ID, uuid.NewString())
	require.NoError(t, err)
	require.True(t, settled)

	done, err = repository.CompleteJobIfSettled(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, done)

	settled, err = repository.SettleJobCallFailed(ctx, created.ID, jobCalls[1].ID, "provider rejected call")
	require.NoError(t, err)
	require.True(t, settled)

	done, err = repository.CompleteJobIfSettled(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, done)

	done, err = repository.CompleteJobIfSettled(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, done, "finalization happens exactly once")

	current, err := repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, current.Status)
	require.NotNil(t, current.FinishedAt)
}

func TestFailPendingJobCallsCountsRows(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 4)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)

	claimed, err := repository.ClaimJobCall(ctx, jobCalls[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	failed, err := repository.FailPendingJobCalls(ctx, created.ID, CancelledErrorMessage)
	require.NoError(t, err)
	require.Equal(t, 3, failed)

	current, err := repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, current.FailedCalls, "force-failed calls land on the failed counter")

	failed, err = repository.FailPendingJobCalls(ctx, created.ID, CancelledErrorMessage)
	require.NoError(t, err)
	require.Zero(t, failed)

	current, err = repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, current.FailedCalls)
}

func TestCountJobCallOutcomes(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 3)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)

	claimed, err := repository.ClaimJobCall(ctx, jobCalls[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	settled, err := repository.SettleJobCallDispatched(ctx, created.ID, jobCalls[0].ID, uuid.NewString())
	require.NoError(t, err)
	require.True(t, settled)

	claimed, err = repository.ClaimJobCall(ctx, jobCalls[1].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	settled, err = repository.SettleJobCallFailed(ctx, created.ID, jobCalls[1].ID, "provider rejected call")
	require.NoError(t, err)
	require.True(t, settled)

	counters, err := repository.CountJobCallOutcomes(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, Counters{Total: 3, Completed: 1, Failed: 1}, counters)
	require.False(t, counters.Settled())
}

func TestSetJobCountersIsForwardOnly(t *testing.T) {
	repository := NewRepository(newTestDB(t))
	ctx := context.Background()

	created := seedJob(t, repository, 3)

	jobCalls, err := repository.ListJobCalls(ctx, created.ID)
	require.NoError(t, err)

	claimed, err := repository.ClaimJobCall(ctx, jobCalls[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	settled, err := repository.SettleJobCallDispatched(ctx, created.ID, jobCalls[0].ID, uuid.NewString())
	require.NoError(t, err)
	require.True(t, settled)

	// A recount taken before the settle landed must not regress the
	// counters it races with.
	applied, err := repository.SetJobCounters(ctx, created.ID, Counters{Total: 3})
	require.NoError(t, err)
	require.False(t, applied)

	current, err := repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.CompletedCalls)

	// A recount that is ahead of the stored counters repairs them.
	applied, err = repository.SetJobCounters(ctx, created.ID, Counters{Total: 3, Completed: 1, Failed: 1})
	require.NoError(t, err)
	require.True(t, applied)

	current, err = repository.GetJobByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.CompletedCalls)
	require.Equal(t, 1, current.FailedCalls)
}

func TestGetJobByIDReturnsNilWhenAbsent(t *testing.T) {
	repository := NewRepository(newTestDB(t))

	found, err := repository.GetJobByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, found)
}
