// Package llm holds the provider-neutral chat message, the Provider contract the
// workflow engine talks to, and the hosted/self-hosted/Claude/Gemini adapters.
package llm

import (
	"context"
	"net/http"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTokens bounds the history sent with each request (4 chars per token).
const DefaultMaxTokens = 4096

// Message is the normalized unit every adapter translates into its own wire format.
type Message struct {
	ID      string `json:"-"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SendOptions struct {
	NeedsJSONResponse bool
	Host              string
	Model             string
	Temperature       float64
}

// Provider is implemented by every backend adapter. SendMessageStream returns a
// channel of text deltas, closed when the stream ends, and an error channel that
// receives at most one failure and is closed after the delta channel.
type Provider interface {
	SendMessageStream(ctx context.Context, text string, opts SendOptions) (<-chan string, <-chan error)
	CancelStream()

	SetHistory(messages []Message)
	AddHistoryItem(message Message)
	RemoveHistoryItem(id string)
	GetHistory() []Message
	DeleteHistoryList()
}

type HostKind string

const (
	HostOpenAI HostKind = "openai"
	HostClaude HostKind = "claude"
	HostGemini HostKind = "gemini"
	HostCustom HostKind = "custom"
)

// ResolveHost maps a command host onto an adapter kind. Matching is
// case-insensitive; anything that is not a known vendor is a self-hosted URL.
func ResolveHost(host string) HostKind {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case string(HostGemini):
		return HostGemini
	case string(HostOpenAI):
		return HostOpenAI
	case string(HostClaude):
		return HostClaude
	default:
		return HostCustom
	}
}

type ClientConfig struct {
	MaxTokens int
	// ClaudeMaxTokens is the completion budget sent as max_tokens to Anthropic.
	ClaudeMaxTokens int
	HTTPClient      *http.Client
	// BaseURLs overrides vendor endpoints, e.g. for a proxy.
	BaseURLs map[HostKind]string
}

func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// no overall timeout: a stream may legitimately run for minutes
	return &http.Client{}
}

func (c ClientConfig) baseURL(kind HostKind, fallback string) string {
	if u, ok := c.BaseURLs[kind]; ok && u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return fallback
}

func (c ClientConfig) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

// NewProvider builds a fresh adapter. Adapters own mutable history, so callers
// construct one per lane and never share it.
func NewProvider(kind HostKind, apiKey string, cfg ClientConfig) Provider {
	switch kind {
	case HostOpenAI:
		return NewGPTClient(apiKey, cfg)
	case HostClaude:
		return NewClaudeClient(apiKey, cfg)
	case HostGemini:
		return NewGeminiClient(apiKey, cfg)
	default:
		return NewCustomClient(cfg)
	}
}
