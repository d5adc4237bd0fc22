package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/conversation"
	"github.com/personachat/personachat/internal/memory"
)

func sampleExportData() ExportData {
	at := time.Date(2026, 2, 25, 10, 30, 0, 0, time.UTC)
	return ExportData{
		Session: conversation.Session{
			ID:           "s1",
			PersonaID:    "sam",
			Title:        "Dinner ideas for tonight",
			CreatedAt:    at,
			LastModified: at.Add(5 * time.Minute),
			Messages: []conversation.Message{
				{ID: "m1", Role: adapter.RoleUser, Content: "What should I cook?", State: conversation.StateComplete, CreatedAt: at},
				{ID: "m2", Role: adapter.RoleAssistant, Content: "Pasta. Always pasta.", State: conversation.StateComplete, CreatedAt: at.Add(time.Second)},
				{ID: "m3", Role: adapter.RoleUser, Content: "Something else?", State: conversation.StateComplete, CreatedAt: at.Add(time.Minute)},
				{ID: "m4", Role: adapter.RoleAssistant, Content: "Tacos, maybe", State: conversation.StateAborted, CreatedAt: at.Add(2 * time.Minute)},
				{ID: "m5", Role: adapter.RoleAssistant, State: conversation.StatePending, CreatedAt: at.Add(3 * time.Minute)},
			},
		},
		PersonaName: "Sam",
		Facts: []memory.Fact{
			{Text: "Alice", Category: memory.CategoryName},
		},
	}
}

func TestGet_ValidFormats(t *testing.T) {
	for _, name := range []string{"markdown", "json", "text"} {
		exp, ok := Get(name)
		if !ok || exp == nil {
			t.Errorf("Get(%q) = %v, %v", name, exp, ok)
		}
	}
}

func TestGet_InvalidFormat(t *testing.T) {
	if _, ok := Get("claude"); ok {
		t.Error("expected Get('claude') to return false")
	}
}

func TestValidFormats_Sorted(t *testing.T) {
	got := strings.Join(ValidFormats(), ",")
	if got != "json,markdown,text" {
		t.Errorf("ValidFormats() = %s", got)
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := (&MarkdownExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"# Dinner ideas for tonight",
		"| Persona | Sam (sam) |",
		"**You:**\n\nWhat should I cook?",
		"**Sam:**\n\nPasta. Always pasta.",
		"_(stopped)_",
		"## Remembered",
		"- Alice _(name)_",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
	if strings.Count(out, "**Sam:**") != 2 {
		t.Errorf("pending placeholder should be skipped:\n%s", out)
	}
}

func TestJSONExporter(t *testing.T) {
	out, err := (&JSONExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatal(err)
	}

	var parsed jsonOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Persona.ID != "sam" || parsed.Persona.Name != "Sam" {
		t.Errorf("persona: %+v", parsed.Persona)
	}
	if len(parsed.Messages) != 4 {
		t.Fatalf("messages: got %d, want 4", len(parsed.Messages))
	}
	if parsed.Messages[3].State != "aborted" {
		t.Errorf("last message state: %s", parsed.Messages[3].State)
	}
	if len(parsed.Facts) != 1 || parsed.Facts[0].Category != "NAME" {
		t.Errorf("facts: %+v", parsed.Facts)
	}
}

func TestJSONExporter_EmptySession(t *testing.T) {
	out, err := (&JSONExporter{}).Export(ExportData{Session: conversation.Session{ID: "x", Title: "New Chat"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"messages": []`) {
		t.Errorf("empty sessions should export an empty array:\n%s", out)
	}
	if strings.Contains(out, `"facts"`) {
		t.Errorf("facts should be omitted when empty:\n%s", out)
	}
}

func TestTextExporter(t *testing.T) {
	data := sampleExportData()
	data.PersonaName = ""
	out, err := (&TextExporter{}).Export(data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Dinner ideas for tonight\n========================\n") {
		t.Errorf("header:\n%s", out)
	}
	if !strings.Contains(out, "[2026-02-25 10:30] You: What should I cook?") {
		t.Errorf("user line missing:\n%s", out)
	}
	if !strings.Contains(out, "Assistant: Pasta. Always pasta.") {
		t.Errorf("assistant falls back to a generic name:\n%s", out)
	}
}
