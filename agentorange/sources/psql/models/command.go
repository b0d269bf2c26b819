package models

import (
	"time"

	"gorm.io/datatypes"
)

type AgentType string

const (
	AgentTypeCoder    AgentType = "coder"
	AgentTypeReviewer AgentType = "reviewer"
)

const (
	HostOpenAI = "openai"
	HostClaude = "claude"
	HostGemini = "gemini"
)

// ChatCommand is a reusable prompt bound to a backend. DependencyIDs are stored
// for the editor but the workflow engine does not schedule by them.
type ChatCommand struct {
	Name             string                      `json:"name" gorm:"type:varchar(255);primaryKey"`
	Timestamp        time.Time                   `json:"timestamp" gorm:"not null"`
	Prompt           string                      `json:"prompt" gorm:"type:text;not null"`
	ShortDescription string                      `json:"short_description" gorm:"type:varchar(512);default:''"`
	Role             *string                     `json:"role,omitempty" gorm:"type:text"`
	Model            *string                     `json:"model,omitempty" gorm:"type:varchar(255)"`
	Host             *string                     `json:"host,omitempty" gorm:"type:varchar(512)"`
	Temperature      float64                     `json:"temperature" gorm:"not null"`
	Type             AgentType                   `json:"type" gorm:"type:varchar(20);not null;default:'coder'"`
	InputCodeID      *string                     `json:"input_code_id,omitempty" gorm:"type:varchar(64)"`
	DependencyIDs    datatypes.JSONSlice[string] `json:"dependency_ids" gorm:"type:json"`
}

func (ChatCommand) TableName() string {
	return "chat_commands"
}
