package models

import "time"

// CodeSnippet is a code artifact produced by a coder command.
type CodeSnippet struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Code      string    `json:"code" gorm:"type:text;not null"`
	SubTitle  string    `json:"sub_title" gorm:"type:varchar(255);default:''"`
	GroupID   string    `json:"group_id" gorm:"type:varchar(64);not null;index"`
}

func (CodeSnippet) TableName() string {
	return "code_snippets"
}
