package history

import (
	"agentorange/agentorange/services/llm"
	"agentorange/agentorange/sources/psql/models"
	"testing"
)

func sampleRequest(opts Options) Request {
	return Request{
		FileContent:  "Line 1\nLine 2\nLine 3",
		SelectedRows: Rows([]int{0, 2}),
		Options:      opts,
		Role:         "You are a reviewer.",
		Messages: []models.ChatMessage{
			{ID: "m1", Role: models.RoleUser, Content: "question"},
			{ID: "m2", Role: models.RoleAssistant, Content: "answer"},
		},
	}
}

func TestAssembleEveryOptionSubset(t *testing.T) {
	for opts := Options(0); opts <= All; opts++ {
		req := sampleRequest(opts)
		got := Assemble(req)

		var want []llm.Message
		if opts.Has(OptionRole) {
			want = append(want, llm.Message{Role: llm.RoleSystem, Content: req.Role})
		}
		if opts.Has(OptionCode) {
			want = append(want, llm.Message{Role: llm.RoleSystem, Content: req.FileContent})
		}
		if opts.Has(OptionSelection) {
			want = append(want, llm.Message{Role: llm.RoleSystem, Content: "Line 1\nLine 3"})
		}
		if opts.Has(OptionMessages) {
			want = append(want,
				llm.Message{Role: llm.RoleUser, Content: "question"},
				llm.Message{Role: llm.RoleAssistant, Content: "answer"},
			)
		}

		if len(got) != len(want) {
			t.Fatalf("options %04b: expected %d messages, got %d: %+v", opts, len(want), len(got), got)
		}
		for i := range want {
			if got[i].Role != want[i].Role || got[i].Content != want[i].Content {
				t.Errorf("options %04b message %d: expected %+v, got %+v", opts, i, want[i], got[i])
			}
		}
	}
}

func TestAssembleRoleSkippedWhenEmpty(t *testing.T) {
	req := sampleRequest(OptionRole)
	req.Role = ""
	if got := Assemble(req); len(got) != 0 {
		t.Errorf("expected no messages without a role, got %+v", got)
	}
}

func TestAssembleEmptyCodeStillEmitted(t *testing.T) {
	got := Assemble(Request{Options: OptionCode})
	if len(got) != 1 {
		t.Fatalf("expected one system message, got %d", len(got))
	}
	if got[0].Role != llm.RoleSystem || got[0].Content != "" {
		t.Errorf("expected empty system message, got %+v", got[0])
	}
}

func TestProcessSelection(t *testing.T) {
	msg := ProcessSelection("Line 1\nLine 2\nLine 3", Rows([]int{0, 2}))
	if msg.Role != llm.RoleSystem {
		t.Errorf("expected system role, got %q", msg.Role)
	}
	if msg.Content != "Line 1\nLine 3" {
		t.Errorf("expected %q, got %q", "Line 1\nLine 3", msg.Content)
	}
}

func TestProcessSelectionIgnoresOutOfRange(t *testing.T) {
	msg := ProcessSelection("a\nb", Rows([]int{-1, 1, 7}))
	if msg.Content != "b" {
		t.Errorf("expected %q, got %q", "b", msg.Content)
	}
}

func TestProcessSelectionKeepsOriginalOrder(t *testing.T) {
	msg := ProcessSelection("a\nb\nc\nd", Rows([]int{3, 0, 2}))
	if msg.Content != "a\nc\nd" {
		t.Errorf("expected %q, got %q", "a\nc\nd", msg.Content)
	}
}

func TestFromChatMessageRoleTag(t *testing.T) {
	cases := map[models.Role]string{
		models.RoleAssistant: llm.RoleAssistant,
		"ai-claude":          llm.RoleAssistant,
		models.RoleUser:      llm.RoleUser,
		models.RoleSystem:    llm.RoleUser,
	}
	for role, want := range cases {
		if got := FromChatMessage(models.ChatMessage{Role: role}).Role; got != want {
			t.Errorf("role %q: expected %q, got %q", role, want, got)
		}
	}
}

func TestParseOptions(t *testing.T) {
	if got := ParseOptions([]string{"role", " Messages ", "bogus"}); got != OptionRole|OptionMessages {
		t.Errorf("unexpected options %04b", got)
	}
	if got := ParseOptions([]string{"all"}); got != All {
		t.Errorf("expected All, got %04b", got)
	}
}
