package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClaudeClientStream(t *testing.T) {
	var payload map[string]any
	var key, version string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		key = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		_, _ = fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		_, _ = fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		_, _ = fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		_, _ = fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := NewClaudeClient("sk-ant", ClientConfig{
		HTTPClient:      server.Client(),
		ClaudeMaxTokens: 1024,
		BaseURLs:        map[HostKind]string{HostClaude: server.URL},
	})
	client.SetHistory([]Message{
		{Role: RoleSystem, Content: "System A"},
		{Role: RoleSystem, Content: "System B"},
		{Role: RoleUser, Content: "earlier"},
	})

	out, errs := client.SendMessageStream(context.Background(), "now", SendOptions{Model: "claude-sonnet", Temperature: 0.5})
	text, err := collect(t, out, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "Hi there" {
		t.Fatalf("expected %q, got %q", "Hi there", text)
	}
	if key != "sk-ant" || version != anthropicVersion {
		t.Errorf("unexpected auth headers: key=%q version=%q", key, version)
	}
	if payload["system"] != "System A\n\nSystem B" {
		t.Errorf("expected joined system prompt, got %#v", payload["system"])
	}
	if payload["max_tokens"] != float64(1024) || payload["stream"] != true {
		t.Errorf("unexpected payload: %#v", payload)
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one consolidated user turn, got %d", len(msgs))
	}
	msg, _ := msgs[0].(map[string]any)
	if msg["role"] != RoleUser || msg["content"] != "earlier\nnow" {
		t.Errorf("unexpected consolidated turn: %#v", msg)
	}
}

func TestClaudeClientErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer server.Close()

	client := NewClaudeClient("sk-ant", ClientConfig{
		HTTPClient: server.Client(),
		BaseURLs:   map[HostKind]string{HostClaude: server.URL},
	})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "m"})
	if _, err := collect(t, out, errs); !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
}

func TestClaudeClientMissingKey(t *testing.T) {
	client := NewClaudeClient("", ClientConfig{})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "m"})
	if _, err := collect(t, out, errs); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestToClaudeMessagesConsolidates(t *testing.T) {
	system, got := ToClaudeMessages([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	})
	if system != "rules" {
		t.Errorf("expected system %q, got %q", "rules", system)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %+v", got)
	}
	if got[0].Role != RoleUser || got[0].Content != "a\nb" {
		t.Errorf("unexpected first turn: %+v", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Content != "c" {
		t.Errorf("unexpected second turn: %+v", got[1])
	}
}

func TestToClaudeMessagesStartsWithUser(t *testing.T) {
	newest := Message{Role: RoleUser, Content: "next"}
	trimmed := TrimHistory([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "q1 long question"},
		{Role: RoleAssistant, Content: "a1"},
	}, newest, 4)
	if len(trimmed) != 1 || trimmed[0].Role != RoleAssistant {
		t.Fatalf("expected only the assistant turn to survive trimming, got %+v", trimmed)
	}

	_, got := ToClaudeMessages(append(trimmed, newest))
	if len(got) != 1 || got[0].Role != RoleUser || got[0].Content != "next" {
		t.Errorf("conversation must open with the user turn, got %+v", got)
	}

	if _, got := ToClaudeMessages([]Message{{Role: RoleAssistant, Content: "orphan"}}); len(got) != 0 {
		t.Errorf("a lone assistant turn should be dropped, got %+v", got)
	}
}
