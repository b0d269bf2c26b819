// Package history builds the context sent ahead of a prompt: the system role,
// the attached file, a selected excerpt of it and the prior turns of the group.
package history

import (
	"agentorange/agentorange/services/llm"
	"agentorange/agentorange/sources/psql/models"
	"strings"
)

// Options selects which scopes Assemble includes.
type Options uint8

const (
	OptionRole Options = 1 << iota
	OptionCode
	OptionSelection
	OptionMessages
)

const All = OptionRole | OptionCode | OptionSelection | OptionMessages

func (o Options) Has(opt Options) bool {
	return o&opt == opt
}

// ParseOptions maps scope names ("role", "code", "selection", "messages") onto
// a bitset. Unknown names are ignored.
func ParseOptions(names []string) Options {
	var o Options
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "role":
			o |= OptionRole
		case "code":
			o |= OptionCode
		case "selection":
			o |= OptionSelection
		case "messages":
			o |= OptionMessages
		case "all":
			o |= All
		}
	}
	return o
}

type Request struct {
	FileContent  string
	SelectedRows map[int]struct{}
	Options      Options
	Messages     []models.ChatMessage
	Role         string
}

// Assemble returns the ordered context for req: role, code, selection, then
// prior messages. It has no side effects.
func Assemble(req Request) []llm.Message {
	var out []llm.Message
	if req.Options.Has(OptionRole) && req.Role != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: req.Role})
	}
	if req.Options.Has(OptionCode) {
		// an empty file still yields a (blank) system message
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: req.FileContent})
	}
	if req.Options.Has(OptionSelection) {
		out = append(out, ProcessSelection(req.FileContent, req.SelectedRows))
	}
	if req.Options.Has(OptionMessages) {
		for _, m := range req.Messages {
			out = append(out, FromChatMessage(m))
		}
	}
	return out
}

// ProcessSelection keeps the zero-based lines of content listed in rows, in
// their original order. Indices outside the content are ignored.
func ProcessSelection(content string, rows map[int]struct{}) llm.Message {
	lines := strings.Split(content, "\n")
	selected := make([]string, 0, len(rows))
	for i, line := range lines {
		if _, ok := rows[i]; ok {
			selected = append(selected, line)
		}
	}
	return llm.Message{Role: llm.RoleSystem, Content: strings.Join(selected, "\n")}
}

func FromChatMessage(m models.ChatMessage) llm.Message {
	role := llm.RoleUser
	if m.IsAssistant() {
		role = llm.RoleAssistant
	}
	return llm.Message{ID: m.ID, Role: role, Content: m.Content}
}

// Rows converts a list of line indices into the set Assemble expects.
func Rows(indices []int) map[int]struct{} {
	rows := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		rows[i] = struct{}{}
	}
	return rows
}
