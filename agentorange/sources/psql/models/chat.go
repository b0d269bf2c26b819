package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser Role = "user"
	// Assistant turns carry the "ai" tag; anything with that prefix is replayed as assistant.
	RoleAssistant Role = "ai"
	RoleSystem    Role = "system"
)

type MessageType string

const (
	MessageTypeMessage MessageType = "message"
	MessageTypeCode    MessageType = "code"
)

type ChatMessage struct {
	ID        string      `json:"id" gorm:"type:varchar(64);primaryKey"`
	Timestamp time.Time   `json:"timestamp" gorm:"not null;index"`
	Role      Role        `json:"role" gorm:"type:varchar(20);not null"`
	Type      MessageType `json:"type" gorm:"type:varchar(20);not null;default:'message'"`
	Content   string      `json:"content" gorm:"type:text;not null;default:''"`
	Tag       *string     `json:"tag,omitempty" gorm:"type:varchar(255)"`
	CodeID    *string     `json:"code_id,omitempty" gorm:"type:varchar(64)"`
	Model     *string     `json:"model,omitempty" gorm:"type:varchar(255)"`
	Host      *string     `json:"host,omitempty" gorm:"type:varchar(512)"`
	GroupID   string      `json:"group_id" gorm:"type:varchar(64);not null;index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m ChatMessage) IsAssistant() bool {
	return strings.HasPrefix(string(m.Role), string(RoleAssistant))
}
