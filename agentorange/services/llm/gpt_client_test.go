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

func writeSSE(t *testing.T, w http.ResponseWriter, lines ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestGPTClientStreamsAndCommitsHistory(t *testing.T) {
	var payload map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		writeSSE(t, w,
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`[DONE]`,
		)
	}))
	defer server.Close()

	client := NewGPTClient("sk-test", ClientConfig{
		HTTPClient: server.Client(),
		BaseURLs:   map[HostKind]string{HostOpenAI: server.URL},
	})
	client.SetHistory([]Message{{Role: RoleSystem, Content: "be brief"}})

	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "gpt-4o", Temperature: 0.2, NeedsJSONResponse: true})
	text, err := collect(t, out, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "Hello" {
		t.Fatalf("expected %q, got %q", "Hello", text)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", auth)
	}
	if payload["stream"] != true || payload["model"] != "gpt-4o" {
		t.Errorf("unexpected payload: %#v", payload)
	}
	if rf, ok := payload["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Errorf("expected json_object response_format, got %#v", payload["response_format"])
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}

	history := client.GetHistory()
	if len(history) != 3 {
		t.Fatalf("expected history of 3 after exchange, got %d", len(history))
	}
	if history[1].Role != RoleUser || history[1].Content != "hi" {
		t.Errorf("unexpected user entry: %+v", history[1])
	}
	if history[2].Role != RoleAssistant || history[2].Content != "Hello" {
		t.Errorf("unexpected assistant entry: %+v", history[2])
	}
}

func TestGPTClientBadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewGPTClient("bad", ClientConfig{
		HTTPClient: server.Client(),
		BaseURLs:   map[HostKind]string{HostOpenAI: server.URL},
	})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "gpt-4o"})
	_, err := collect(t, out, errs)
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
	var bad *BadResponseError
	if !errors.As(err, &bad) {
		t.Fatalf("expected *BadResponseError, got %T", err)
	}
	if bad.StatusCode != http.StatusUnauthorized || bad.Message != "Incorrect API key provided" {
		t.Errorf("unexpected error details: %+v", bad)
	}
	if len(client.GetHistory()) != 0 {
		t.Errorf("failed exchange must not be committed")
	}
}

func TestGPTClientMidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"delta":{"content":"par"}}]}`,
			`{"error":{"message":"overloaded"}}`,
		)
	}))
	defer server.Close()

	client := NewGPTClient("sk", ClientConfig{
		HTTPClient: server.Client(),
		BaseURLs:   map[HostKind]string{HostOpenAI: server.URL},
	})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "m"})
	text, err := collect(t, out, errs)
	if !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
	if text != "par" {
		t.Errorf("expected partial text %q, got %q", "par", text)
	}
}

func TestGPTClientMissingKey(t *testing.T) {
	client := NewGPTClient("", ClientConfig{})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "m"})
	if _, err := collect(t, out, errs); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestGPTClientCancelStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"choices":[{"delta":{"content":"first"}}]}`)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeSSE(t, w, `{"choices":[{"delta":{"content":"second"}}]}`, `[DONE]`)
	}))
	defer server.Close()

	client := NewGPTClient("sk", ClientConfig{
		HTTPClient: server.Client(),
		BaseURLs:   map[HostKind]string{HostOpenAI: server.URL},
	})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Model: "m"})

	first := <-out
	if first != "first" {
		t.Fatalf("expected first delta, got %q", first)
	}
	client.CancelStream()
	client.CancelStream()
	close(release)

	rest, err := collect(t, out, errs)
	if err != nil {
		t.Fatalf("cancelled stream should end without error, got %v", err)
	}
	if rest != "" {
		t.Errorf("expected no deltas after cancel, got %q", rest)
	}
	if len(client.GetHistory()) != 0 {
		t.Errorf("cancelled exchange must not be committed")
	}
}

func TestCustomClientUsesHostWithoutAuth(t *testing.T) {
	var auth string
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		writeSSE(t, w, `{"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := NewCustomClient(ClientConfig{HTTPClient: server.Client()})
	out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Host: server.URL + "/", Model: "local-model", Temperature: 0.7})
	text, err := collect(t, out, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected %q, got %q", "ok", text)
	}
	if auth != "" {
		t.Errorf("expected no Authorization header, got %q", auth)
	}
	if payload["model"] != "local-model" || payload["temperature"] != 0.7 {
		t.Errorf("unexpected payload: %#v", payload)
	}
}

func TestCustomClientRejectsInvalidHost(t *testing.T) {
	client := NewCustomClient(ClientConfig{})
	for _, host := range []string{"", "localhost:1234", "ftp://example.com"} {
		out, errs := client.SendMessageStream(context.Background(), "hi", SendOptions{Host: host, Model: "m"})
		if _, err := collect(t, out, errs); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("host %q: expected ErrInvalidParameters, got %v", host, err)
		}
	}
}
