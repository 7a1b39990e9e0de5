package job

import "time"

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminalStatus reports whether a job status permits no further
// transitions. Job-level failed is reserved for engine failures, not
// individual call failures.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is one batch-calling execution: a (campaign, upload, agent)
// triple plus progress counters. The counters are the single source of
// truth for progress reporting and are maintained incrementally; the
// reconciler recomputes them from job calls only for repair.
type Job struct {
	ID             string     `gorm:"column:id;type:varchar(36);primaryKey"              json:"id"`
	CampaignID     string     `gorm:"column:campaign_id;type:varchar(36);index;not null" json:"campaign_id"`
	UploadID       string     `gorm:"column:upload_id;type:varchar(36);index;not null"   json:"upload_id"`
	AgentID        string     `gorm:"column:agent_id;type:varchar(36);index;not null"    json:"agent_id"`
	Status         string     `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	TotalCalls     int        `gorm:"column:total_calls;not null"                        json:"total_calls"`
	CompletedCalls int        `gorm:"column:completed_calls;not null;default:0"          json:"completed_calls"`
	FailedCalls    int        `gorm:"column:failed_calls;not null;default:0"             json:"failed_calls"`
	StartedAt      *time.Time `gorm:"column:started_at"                                  json:"started_at,omitempty"`
	FinishedAt     *time.Time `gorm:"column:finished_at"                                 json:"finished_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"                   json:"created_at"`
}

func (Job) TableName() string {
	return "jobs"
}

const (
	CallStatusPending   = "pending"
	CallStatusCalling   = "calling"
	CallStatusCompleted = "completed"
	CallStatusFailed    = "failed"
)

// CancelledErrorMessage marks job calls force-failed by operator
// cancellation before their attempt started.
const CancelledErrorMessage = "cancelled"

// JobCall tracks one call attempt within a job. Completed means the
// attempt was successfully dispatched to the provider, not that the
// conversation itself finished; CallID is set only once the underlying
// call row exists.
type JobCall struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"                   json:"id"`
	JobID          string    `gorm:"column:job_id;type:varchar(36);index;not null"           json:"job_id"`
	BatchContactID string    `gorm:"column:batch_contact_id;type:varchar(36);index;not null" json:"batch_contact_id"`
	RowIndex       int       `gorm:"column:row_index;not null"                               json:"row_index"`
	CallID         *string   `gorm:"column:call_id;type:varchar(36)"                         json:"call_id,omitempty"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	ErrorMessage   string    `gorm:"column:error_message;type:text"                          json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"                        json:"created_at"`
}

func (JobCall) TableName() string {
	return "job_calls"
}

func IsTerminalCallStatus(status string) bool {
	return status == CallStatusCompleted || status == CallStatusFailed
}

// Counters is the result of recomputing job progress from job call
// rows.
type Counters struct {
	Total     int
	Completed int
	Failed    int
}

func (c Counters) Settled() bool {
	return c.Completed+c.Failed == c.Total
}
