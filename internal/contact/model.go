package contact

import (
	"time"

	"gorm.io/datatypes"
)

// Contact is a person reachable by phone. Phone numbers are E.164 and
// unique across all contacts.
type Contact struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey"              json:"id"`
	Name      string         `gorm:"column:name;type:varchar(255);not null"             json:"name"`
	Phone     string         `gorm:"column:phone;type:varchar(20);uniqueIndex;not null" json:"phone"`
	Notes     string         `gorm:"column:notes;type:text"                             json:"notes,omitempty"`
	Tags      datatypes.JSON `gorm:"column:tags;type:jsonb"                             json:"tags,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"                   json:"created_at"`
	UpdatedAt *time.Time     `gorm:"column:updated_at;autoUpdateTime"                   json:"updated_at,omitempty"`
}

func (Contact) TableName() string {
	return "contacts"
}

const (
	MemorySourceAuto   = "auto"
	MemorySourceManual = "manual"
)

// Memory is a fact remembered about a contact, accumulated from calls
// or manual entry. CallID, when set, references the call it came from.
type Memory struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"             json:"id"`
	ContactID string    `gorm:"column:contact_id;type:varchar(36);index;not null" json:"contact_id"`
	Content   string    `gorm:"column:content;type:text;not null"                 json:"content"`
	Source    string    `gorm:"column:source;type:varchar(16);not null;default:'manual'" json:"source"`
	CallID    *string   `gorm:"column:call_id;type:varchar(36)"                   json:"call_id,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"                  json:"created_at"`
}

func (Memory) TableName() string {
	return "memories"
}
