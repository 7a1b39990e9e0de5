package agent

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TemplatePropertySales   = "property_sales"
	TemplatePropertyManager = "property_manager"
	TemplateCustom          = "custom"
)

// Agent is a configured voice-agent persona. Disabled agents must not
// be assigned to new jobs.
type Agent struct {
	ID                string     `gorm:"column:id;type:varchar(36);primaryKey"          json:"id"`
	Name              string     `gorm:"column:name;type:varchar(255);not null"         json:"name"`
	Description       string     `gorm:"column:description;type:text"                   json:"description,omitempty"`
	SystemPrompt      string     `gorm:"column:system_prompt;type:text;not null"        json:"system_prompt"`
	Template          string     `gorm:"column:template;type:varchar(32)"               json:"template,omitempty"`
	GreetingMessage   string     `gorm:"column:greeting_message;type:text"              json:"greeting_message,omitempty"`
	Enabled           bool       `gorm:"column:enabled;not null;default:true"           json:"enabled"`
	ElevenLabsAgentID string     `gorm:"column:elevenlabs_agent_id;type:varchar(255)"   json:"elevenlabs_agent_id,omitempty"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"               json:"created_at"`
	UpdatedAt         *time.Time `gorm:"column:updated_at;autoUpdateTime"               json:"updated_at,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}

const (
	AuthTypeNone   = "none"
	AuthTypeAPIKey = "api_key"
	AuthTypeBearer = "bearer"
	AuthTypeBasic  = "basic"
)

// CustomFunction declares an external HTTP endpoint the voice agent may
// invoke during a call. Disabled functions are never exposed to the
// voice session.
type CustomFunction struct {
	ID              string         `gorm:"column:id;type:varchar(36);primaryKey"         json:"id"`
	AgentID         string         `gorm:"column:agent_id;type:varchar(36);index;not null" json:"agent_id"`
	Name            string         `gorm:"column:name;type:varchar(255);not null"        json:"name"`
	Description     string         `gorm:"column:description;type:text"                  json:"description"`
	Endpoint        string         `gorm:"column:endpoint;type:varchar(2048);not null"   json:"endpoint"`
	Method          string         `gorm:"column:method;type:varchar(8);not null"        json:"method"`
	Headers         datatypes.JSON `gorm:"column:headers;type:jsonb"                     json:"headers,omitempty"`
	AuthType        string         `gorm:"column:auth_type;type:varchar(16);not null;default:'none'" json:"auth_type"`
	AuthConfig      datatypes.JSON `gorm:"column:auth_config;type:jsonb"                 json:"auth_config,omitempty"`
	Parameters      datatypes.JSON `gorm:"column:parameters;type:jsonb"                  json:"parameters,omitempty"`
	ResponseMapping datatypes.JSON `gorm:"column:response_mapping;type:jsonb"            json:"response_mapping,omitempty"`
	TimeoutSeconds  int            `gorm:"column:timeout_seconds;not null;default:10"    json:"timeout_seconds"`
	Enabled         bool           `gorm:"column:enabled;not null;default:true"          json:"enabled"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"              json:"created_at"`
	UpdatedAt       *time.Time     `gorm:"column:updated_at;autoUpdateTime"              json:"updated_at,omitempty"`
}

func (CustomFunction) TableName() string {
	return "custom_functions"
}
