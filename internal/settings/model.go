package settings

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a process-wide keyed configuration value. Values are
// opaque JSON; last write wins.
type Setting struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey"           json:"id"`
	Key       string         `gorm:"column:key;type:varchar(255);uniqueIndex;not null" json:"key"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb;not null"                json:"value"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"                json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

const (
	KeySMSTemplate        = "sms_template"
	KeySMSEnabled         = "sms_enabled"
	KeySMSSkipSilent      = "sms_skip_silent"
	KeyAutoCreateContacts = "auto_create_contacts"
	KeySaveMemories       = "save_memories"
)
