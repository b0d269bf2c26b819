package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
	jsonInstruction      = "Respond with a single valid JSON object and nothing else."
)

type ClaudeClient struct {
	*History
	apiKey    string
	baseURL   string
	maxTokens int
	client    *http.Client
	cancelled atomic.Bool
}

type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type claudeEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClaudeClient(apiKey string, cfg ClientConfig) *ClaudeClient {
	maxTokens := cfg.ClaudeMaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ClaudeClient{
		History:   NewHistory(cfg.maxTokens()),
		apiKey:    apiKey,
		baseURL:   cfg.baseURL(HostClaude, defaultClaudeBaseURL),
		maxTokens: maxTokens,
		client:    cfg.httpClient(),
	}
}

func (c *ClaudeClient) CancelStream() {
	c.cancelled.Store(true)
}

func (c *ClaudeClient) SendMessageStream(ctx context.Context, text string, opts SendOptions) (<-chan string, <-chan error) {
	if c.apiKey == "" {
		return failed(fmt.Errorf("%w: claude", ErrMissingCredential))
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	open := func(messages []Message) (io.ReadCloser, error) {
		system, turns := ToClaudeMessages(messages)
		if opts.NeedsJSONResponse {
			system = joinSystem(system, jsonInstruction)
		}
		req := claudeRequest{
			Model:       opts.Model,
			MaxTokens:   c.maxTokens,
			System:      system,
			Messages:    turns,
			Temperature: opts.Temperature,
			Stream:      true,
		}
		return openStream(ctx, c.client, c.baseURL+"/v1/messages", headers, req)
	}
	return stream(ctx, "claude", c.History, &c.cancelled, text, open, parseClaudeEvent)
}

// ToClaudeMessages lifts system messages into the top-level system prompt and
// consolidates the rest into strictly alternating user/assistant turns.
func ToClaudeMessages(messages []Message) (string, []Message) {
	var system string
	var rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = joinSystem(system, m.Content)
			continue
		}
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		rest = append(rest, Message{Role: role, Content: m.Content})
	}
	rest = ConsolidateMessages(rest)
	// the Messages API requires the conversation to open with a user turn
	for len(rest) > 0 && rest[0].Role == RoleAssistant {
		rest = rest[1:]
	}
	return system, rest
}

func joinSystem(system, text string) string {
	if strings.TrimSpace(text) == "" {
		return system
	}
	if system == "" {
		return text
	}
	return system + "\n\n" + text
}

func parseClaudeEvent(data string) (string, bool, error) {
	var ev claudeEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidJSONDecoding, err)
	}
	switch ev.Type {
	case "content_block_delta":
		return ev.Delta.Text, false, nil
	case "message_stop":
		return "", true, nil
	case "error":
		if ev.Error != nil {
			return "", false, streamError("%s: %s", ev.Error.Type, ev.Error.Message)
		}
		return "", false, streamError("claude error event")
	default:
		// message_start, content_block_start/stop, message_delta, ping
		return "", false, nil
	}
}
