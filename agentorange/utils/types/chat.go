package types

import (
	"agentorange/agentorange/services/history"
	"agentorange/agentorange/sources/psql/models"
)

// RunContextRequest is the editor state a chat turn, command or workflow runs against.
// Options names are role, code, selection, messages or all.
type RunContextRequest struct {
	GroupID      string   `json:"group_id,omitempty"`
	FileContent  string   `json:"file_content,omitempty"`
	SelectedRows []int    `json:"selected_rows,omitempty"`
	Options      []string `json:"options,omitempty"`
}

func (r RunContextRequest) HistoryOptions() history.Options {
	return history.ParseOptions(r.Options)
}

type ChatRequest struct {
	RunContextRequest
	Content     string   `json:"content"`
	Host        string   `json:"host,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Role        string   `json:"role,omitempty"`
}

type DeleteMessagesRequest struct {
	IDs []string `json:"ids"`
}

// RunResponse is returned when a run was accepted. Progress is delivered over
// the group's websocket.
type RunResponse struct {
	LaneID   string `json:"lane_id,omitempty"`
	GroupID  string `json:"group_id"`
	Command  string `json:"command,omitempty"`
	Workflow string `json:"workflow,omitempty"`
}

type CommandRequest struct {
	Name             string           `json:"name"`
	Prompt           string           `json:"prompt"`
	ShortDescription string           `json:"short_description,omitempty"`
	Role             *string          `json:"role,omitempty"`
	Model            *string          `json:"model,omitempty"`
	Host             *string          `json:"host,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	Type             models.AgentType `json:"type,omitempty"`
	InputCodeID      *string          `json:"input_code_id,omitempty"`
	DependencyIDs    []string         `json:"dependency_ids,omitempty"`
}

type WorkflowRequest struct {
	Name             string     `json:"name"`
	ShortDescription string     `json:"short_description,omitempty"`
	Arrangement      [][]string `json:"arrangement"`
}

type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}
