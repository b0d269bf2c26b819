package llm

import (
	"strings"
	"testing"
)

// collect drains a stream the way callers do: deltas first, then the error.
func collect(t *testing.T, out <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var b strings.Builder
	for delta := range out {
		b.WriteString(delta)
	}
	return b.String(), <-errs
}

func TestResolveHost(t *testing.T) {
	cases := map[string]HostKind{
		"openai":                   HostOpenAI,
		"OpenAI":                   HostOpenAI,
		" claude ":                 HostClaude,
		"GEMINI":                   HostGemini,
		"http://localhost:1234":    HostCustom,
		"https://openai.proxy.dev": HostCustom,
		"":                         HostCustom,
	}
	for host, want := range cases {
		if got := ResolveHost(host); got != want {
			t.Errorf("ResolveHost(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestNewProviderKinds(t *testing.T) {
	if _, ok := NewProvider(HostOpenAI, "k", ClientConfig{}).(*GPTClient); !ok {
		t.Errorf("expected *GPTClient for openai")
	}
	if _, ok := NewProvider(HostClaude, "k", ClientConfig{}).(*ClaudeClient); !ok {
		t.Errorf("expected *ClaudeClient for claude")
	}
	if _, ok := NewProvider(HostGemini, "k", ClientConfig{}).(*GeminiClient); !ok {
		t.Errorf("expected *GeminiClient for gemini")
	}
	if _, ok := NewProvider(HostCustom, "", ClientConfig{}).(*CustomClient); !ok {
		t.Errorf("expected *CustomClient for custom")
	}
}

func TestContentCount(t *testing.T) {
	msgs := []Message{{Content: "abc"}, {Content: "héllo"}, {Content: ""}}
	if got := ContentCount(msgs); got != 8 {
		t.Errorf("expected 8 characters, got %d", got)
	}
}

func TestTrimHistoryFitsBudget(t *testing.T) {
	history := []Message{
		{ID: "1", Content: strings.Repeat("a", 8)},
		{ID: "2", Content: strings.Repeat("b", 8)},
		{ID: "3", Content: strings.Repeat("c", 8)},
	}
	newest := Message{ID: "4", Content: strings.Repeat("d", 4)}

	// budget of 3 tokens = 12 characters: only the newest 8 + 4 fit
	got := TrimHistory(history, newest, 3)
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("expected only the most recent entry to survive, got %+v", got)
	}
	if ContentCount(append(got, newest)) > 12 {
		t.Errorf("trimmed history exceeds budget")
	}
}

func TestTrimHistoryNewestNeverRemoved(t *testing.T) {
	history := []Message{{ID: "1", Content: "old"}}
	newest := Message{ID: "2", Content: strings.Repeat("x", 100)}

	got := TrimHistory(history, newest, 1)
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %+v", got)
	}
}

func TestTrimHistoryNoBudget(t *testing.T) {
	history := []Message{{Content: strings.Repeat("x", 1000)}}
	if got := TrimHistory(history, Message{Content: "y"}, 0); len(got) != 1 {
		t.Errorf("expected no trimming with a zero budget, got %d entries", len(got))
	}
}

func TestConsolidateMessages(t *testing.T) {
	got := ConsolidateMessages([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	})
	want := []Message{
		{Role: RoleUser, Content: "a\nb"},
		{Role: RoleAssistant, Content: "c"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestHistoryOperations(t *testing.T) {
	h := NewHistory(0)
	h.SetHistory([]Message{{ID: "a", Role: RoleSystem, Content: "sys"}})
	h.AddHistoryItem(Message{ID: "b", Role: RoleUser, Content: "hi"})
	h.AddHistoryItem(Message{ID: "c", Role: RoleAssistant, Content: "hello"})

	h.RemoveHistoryItem("b")
	got := h.GetHistory()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected history after remove: %+v", got)
	}

	// GetHistory hands out a copy
	got[0].Content = "changed"
	if h.GetHistory()[0].Content != "sys" {
		t.Errorf("GetHistory must not expose internal storage")
	}

	h.DeleteHistoryList()
	if len(h.GetHistory()) != 0 {
		t.Errorf("expected empty history after DeleteHistoryList")
	}
}

func TestEventData(t *testing.T) {
	cases := []struct {
		line string
		data string
		ok   bool
	}{
		{"data: {\"a\":1}", "{\"a\":1}", true},
		{"data:[DONE]", "[DONE]", true},
		{": keep-alive", "", false},
		{"event: message_start", "", false},
		{"{\"bare\":true}", "{\"bare\":true}", true},
	}
	for _, c := range cases {
		data, ok := eventData(c.line)
		if data != c.data || ok != c.ok {
			t.Errorf("eventData(%q) = %q, %v; want %q, %v", c.line, data, ok, c.data, c.ok)
		}
	}
}
