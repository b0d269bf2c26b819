package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiRoleModel      = "model"
	defaultSystemPrompt  = "You are a helpful assistant."
	systemAcknowledgment = "Understood."
)

type GeminiClient struct {
	*History
	apiKey    string
	baseURL   string
	client    *http.Client
	cancelled atomic.Bool
}

type GeminiPart struct {
	Text string `json:"text"`
}

type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []GeminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func NewGeminiClient(apiKey string, cfg ClientConfig) *GeminiClient {
	return &GeminiClient{
		History: NewHistory(cfg.maxTokens()),
		apiKey:  apiKey,
		baseURL: cfg.baseURL(HostGemini, defaultGeminiBaseURL),
		client:  cfg.httpClient(),
	}
}

func (c *GeminiClient) CancelStream() {
	c.cancelled.Store(true)
}

func (c *GeminiClient) SendMessageStream(ctx context.Context, text string, opts SendOptions) (<-chan string, <-chan error) {
	if c.apiKey == "" {
		return failed(fmt.Errorf("%w: gemini", ErrMissingCredential))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return failed(fmt.Errorf("%w: model is required", ErrInvalidParameters))
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, url.PathEscape(model))
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	open := func(messages []Message) (io.ReadCloser, error) {
		req := geminiRequest{
			Contents:         ToGeminiContents(messages),
			GenerationConfig: &geminiGenerationConfig{Temperature: opts.Temperature},
		}
		if opts.NeedsJSONResponse {
			req.GenerationConfig.ResponseMimeType = "application/json"
		}
		return openStream(ctx, c.client, endpoint, headers, req)
	}
	return stream(ctx, "gemini", c.History, &c.cancelled, text, open, parseGeminiChunk)
}

// ToGeminiContents opens the conversation with a user/model pair carrying the
// system text and its acknowledgement, then appends the remaining messages.
// Consecutive same-role entries, including across the seed, are merged by
// concatenating their parts.
func ToGeminiContents(messages []Message) []GeminiContent {
	var system []string
	var rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}
	seed := defaultSystemPrompt
	if len(system) > 0 {
		seed = strings.Join(system, "\n\n")
	}

	contents := []GeminiContent{
		{Role: RoleUser, Parts: []GeminiPart{{Text: seed}}},
		{Role: geminiRoleModel, Parts: []GeminiPart{{Text: systemAcknowledgment}}},
	}
	for _, m := range ConsolidateMessages(rest) {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = geminiRoleModel
		}
		last := &contents[len(contents)-1]
		if last.Role == role {
			last.Parts = append(last.Parts, GeminiPart{Text: m.Content})
			continue
		}
		contents = append(contents, GeminiContent{Role: role, Parts: []GeminiPart{{Text: m.Content}}})
	}
	return contents
}

func parseGeminiChunk(data string) (string, bool, error) {
	var chunk geminiStreamResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidJSONDecoding, err)
	}
	if chunk.Error != nil {
		return "", false, streamError("%s: %s", chunk.Error.Status, chunk.Error.Message)
	}
	if len(chunk.Candidates) == 0 {
		return "", false, nil
	}
	var b strings.Builder
	for _, part := range chunk.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), false, nil
}
