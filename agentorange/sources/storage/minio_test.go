package storage

import (
	"agentorange/agentorange/sources/psql/models"
	"encoding/json"
	"testing"
	"time"
)

func TestSnippetKey(t *testing.T) {
	if got := SnippetKey("g1", "s1"); got != "snippets/g1/s1.json" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestEncodeSnippet(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := EncodeSnippet(models.CodeSnippet{
		ID: "s1", Title: "Generated", SubTitle: "Refactor", GroupID: "g1", Code: "x := 1", Timestamp: created,
	}, created.Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var obj SnippetObject
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obj.Code != "x := 1" || obj.SubTitle != "Refactor" || !obj.CreatedAt.Equal(created) || !obj.ArchivedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("unexpected object %+v", obj)
	}
}
