package campaign

import (
	"time"

	"gorm.io/datatypes"
)

// Campaign is a named grouping of batch work. It owns its uploads and
// the jobs run against them.
type Campaign struct {
	ID          string     `gorm:"column:id;type:varchar(36);primaryKey"  json:"id"`
	Name        string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description string     `gorm:"column:description;type:text"           json:"description,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"       json:"created_at"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime"       json:"updated_at,omitempty"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Upload is one ingested contact file. TotalRows always equals the
// number of batch contacts produced from it, and an upload is immutable
// once any job references it.
type Upload struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey"               json:"id"`
	CampaignID string    `gorm:"column:campaign_id;type:varchar(36);index;not null"  json:"campaign_id"`
	Filename   string    `gorm:"column:filename;type:varchar(512);not null"          json:"filename"`
	TotalRows  int       `gorm:"column:total_rows;not null"                          json:"total_rows"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"                    json:"created_at"`
}

func (Upload) TableName() string {
	return "uploads"
}

// BatchContact is one row of an upload: the phone to dial plus the
// variables substituted into the agent prompt. RowIndex preserves
// source-file row order.
type BatchContact struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey"             json:"id"`
	UploadID  string         `gorm:"column:upload_id;type:varchar(36);index;not null"  json:"upload_id"`
	RowIndex  int            `gorm:"column:row_index;not null"                         json:"row_index"`
	Phone     string         `gorm:"column:phone;type:varchar(20);not null"            json:"phone"`
	Name      string         `gorm:"column:name;type:varchar(255)"                     json:"name,omitempty"`
	Variables datatypes.JSON `gorm:"column:variables;type:jsonb"                       json:"variables,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"                  json:"created_at"`
}

func (BatchContact) TableName() string {
	return "batch_contacts"
}
