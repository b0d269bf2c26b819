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

const defaultOpenAIBaseURL = "https://api.openai.com"

const completionsPath = "/v1/chat/completions"

// completionsClient speaks the OpenAI chat-completions streaming protocol.
// GPTClient and CustomClient differ only in auth and where host/model come from.
type completionsClient struct {
	*History
	client    *http.Client
	cancelled atomic.Bool
}

type gptChatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type gptStreamResponse struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *completionsClient) CancelStream() {
	c.cancelled.Store(true)
}

func (c *completionsClient) send(ctx context.Context, name, baseURL, apiKey, text string, opts SendOptions) (<-chan string, <-chan error) {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	open := func(messages []Message) (io.ReadCloser, error) {
		req := gptChatRequest{
			Model:       opts.Model,
			Temperature: opts.Temperature,
			Messages:    messages,
			Stream:      true,
		}
		if opts.NeedsJSONResponse {
			req.ResponseFormat = &responseFormat{Type: "json_object"}
		}
		return openStream(ctx, c.client, baseURL+completionsPath, headers, req)
	}
	return stream(ctx, name, c.History, &c.cancelled, text, open, parseGPTChunk)
}

func parseGPTChunk(data string) (string, bool, error) {
	var chunk gptStreamResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidJSONDecoding, err)
	}
	if chunk.Error != nil {
		return "", false, streamError("%s", chunk.Error.Message)
	}
	var b strings.Builder
	done := false
	for _, choice := range chunk.Choices {
		b.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			done = true
		}
	}
	return b.String(), done, nil
}

// GPTClient is the hosted OpenAI adapter (bearer token auth).
type GPTClient struct {
	*completionsClient
	apiKey  string
	baseURL string
}

func NewGPTClient(apiKey string, cfg ClientConfig) *GPTClient {
	return &GPTClient{
		completionsClient: &completionsClient{
			History: NewHistory(cfg.maxTokens()),
			client:  cfg.httpClient(),
		},
		apiKey:  apiKey,
		baseURL: cfg.baseURL(HostOpenAI, defaultOpenAIBaseURL),
	}
}

func (c *GPTClient) SendMessageStream(ctx context.Context, text string, opts SendOptions) (<-chan string, <-chan error) {
	if c.apiKey == "" {
		return failed(fmt.Errorf("%w: openai", ErrMissingCredential))
	}
	return c.send(ctx, "gpt", c.baseURL, c.apiKey, text, opts)
}

// CustomClient targets a self-hosted OpenAI-compatible server. The base URL is
// the command host, and no Authorization header is sent.
type CustomClient struct {
	*completionsClient
}

func NewCustomClient(cfg ClientConfig) *CustomClient {
	return &CustomClient{
		completionsClient: &completionsClient{
			History: NewHistory(cfg.maxTokens()),
			client:  cfg.httpClient(),
		},
	}
}

func (c *CustomClient) SendMessageStream(ctx context.Context, text string, opts SendOptions) (<-chan string, <-chan error) {
	base, err := customBaseURL(opts.Host)
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return failed(fmt.Errorf("%w: model is required", ErrInvalidParameters))
	}
	return c.send(ctx, "custom", base, "", text, opts)
}

func customBaseURL(host string) (string, error) {
	host = strings.TrimSpace(host)
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: host %q is not an http(s) url", ErrInvalidParameters, host)
	}
	base := strings.TrimSuffix(host, "/")
	return strings.TrimSuffix(base, completionsPath), nil
}

// failed reports err on a stream that yields no deltas.
func failed(err error) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)
	errCh <- err
	close(out)
	close(errCh)
	return out, errCh
}
