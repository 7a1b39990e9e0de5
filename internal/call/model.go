package call

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	// StatusInProgress is the only non-terminal call status: the call
	// was dispatched and its outcome has not been reported yet.
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no_answer"
)

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusNoAnswer:
		return true
	default:
		return false
	}
}

// Call is the durable record of one phone interaction. It is owned by
// nobody but itself: memories and job calls reference it, and it may
// outlive the job that produced it.
type Call struct {
	ID                       string         `gorm:"column:id;type:varchar(36);primaryKey"                        json:"id"`
	AgentID                  string         `gorm:"column:agent_id;type:varchar(36);index;not null"              json:"agent_id"`
	ContactID                *string        `gorm:"column:contact_id;type:varchar(36);index"                     json:"contact_id,omitempty"`
	ElevenLabsConversationID string         `gorm:"column:elevenlabs_conversation_id;type:varchar(255);index"    json:"elevenlabs_conversation_id,omitempty"`
	Direction                string         `gorm:"column:direction;type:varchar(16);not null"                   json:"direction"`
	Status                   string         `gorm:"column:status;type:varchar(16);not null;default:'in_progress'" json:"status"`
	FromPhone                string         `gorm:"column:from_phone;type:varchar(20);not null"                  json:"from_phone"`
	ToPhone                  string         `gorm:"column:to_phone;type:varchar(20);not null"                    json:"to_phone"`
	Summary                  string         `gorm:"column:summary;type:text"                                     json:"summary,omitempty"`
	Transcript               datatypes.JSON `gorm:"column:transcript;type:jsonb"                                 json:"transcript,omitempty"`
	DurationSeconds          int            `gorm:"column:duration_seconds"                                      json:"duration_seconds,omitempty"`
	RecordingURL             string         `gorm:"column:recording_url;type:varchar(2048)"                      json:"recording_url,omitempty"`
	RecordingExpiresAt       *time.Time     `gorm:"column:recording_expires_at"                                  json:"recording_expires_at,omitempty"`
	SMSSent                  bool           `gorm:"column:sms_sent;not null;default:false"                       json:"sms_sent"`
	SMSSentAt                *time.Time     `gorm:"column:sms_sent_at"                                           json:"sms_sent_at,omitempty"`
	StartedAt                *time.Time     `gorm:"column:started_at"                                            json:"started_at,omitempty"`
	EndedAt                  *time.Time     `gorm:"column:ended_at"                                              json:"ended_at,omitempty"`
	CreatedAt                time.Time      `gorm:"column:created_at;autoCreateTime"                             json:"created_at"`
}

func (Call) TableName() string {
	return "calls"
}

// TranscriptItem is one turn of a call transcript.
type TranscriptItem struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Start   float64 `json:"start_time,omitempty"`
	End     float64 `json:"end_time,omitempty"`
}

// CompletionNotification is the terminal outcome for a previously
// placed call, delivered by the provider webhook and keyed by the
// opaque conversation identifier.
type CompletionNotification struct {
	ConversationID     string           `json:"conversation_id"`
	Status             string           `json:"status"`
	Transcript         []TranscriptItem `json:"transcript,omitempty"`
	Summary            string           `json:"summary,omitempty"`
	RecordingURL       string           `json:"recording_url,omitempty"`
	RecordingExpiresAt *time.Time       `json:"recording_expires_at,omitempty"`
	DurationSeconds    int              `json:"duration_seconds,omitempty"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	EndedAt            *time.Time       `json:"ended_at,omitempty"`
}
