package llm

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// charsPerToken is the heuristic used to turn a token budget into characters.
const charsPerToken = 4

// History is the adapter-local conversation buffer. Every adapter embeds one,
// which gives it the history half of the Provider contract.
type History struct {
	mu        sync.Mutex
	items     []Message
	maxTokens int
}

func NewHistory(maxTokens int) *History {
	return &History{maxTokens: maxTokens}
}

func (h *History) SetHistory(messages []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append([]Message(nil), messages...)
}

func (h *History) AddHistoryItem(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, message)
}

func (h *History) RemoveHistoryItem(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, item := range h.items {
		if item.ID == id {
			h.items = append(h.items[:i:i], h.items[i+1:]...)
			return
		}
	}
}

func (h *History) GetHistory() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.items...)
}

func (h *History) DeleteHistoryList() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
}

// prompt builds the outgoing list: the stored history trimmed to the token
// budget followed by the new user message. The trim is kept.
func (h *History) prompt(text string) (Message, []Message) {
	user := Message{ID: uuid.NewString(), Role: RoleUser, Content: text}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = TrimHistory(h.items, user, h.maxTokens)
	out := make([]Message, 0, len(h.items)+1)
	out = append(out, h.items...)
	return user, append(out, user)
}

// commit records a finished exchange so the next send continues the conversation.
func (h *History) commit(user Message, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, user, Message{ID: uuid.NewString(), Role: RoleAssistant, Content: reply})
}

// ContentCount is the total number of characters across messages.
func ContentCount(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += utf8.RuneCountInString(m.Content)
	}
	return n
}

// TrimHistory evicts the oldest history entries until history plus newest fits
// in maxTokens*4 characters. newest is never evicted; maxTokens <= 0 disables trimming.
func TrimHistory(history []Message, newest Message, maxTokens int) []Message {
	if maxTokens <= 0 {
		return history
	}
	budget := maxTokens * charsPerToken
	newestCount := utf8.RuneCountInString(newest.Content)
	total := ContentCount(history) + newestCount
	for len(history) > 0 && total > budget {
		total -= utf8.RuneCountInString(history[0].Content)
		history = history[1:]
	}
	return history
}

// ConsolidateMessages merges consecutive messages with the same role, joining
// their content with a newline. Claude and Gemini only accept alternating turns.
func ConsolidateMessages(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content = strings.Join([]string{out[n-1].Content, m.Content}, "\n")
			continue
		}
		out = append(out, m)
	}
	return out
}
