package completion

import (
	"strings"
	"testing"

	"github.com/personachat/personachat/internal/adapter"
)

// wordCounter counts one token per byte so budgets are easy to reason about.
type wordCounter struct{}

func (wordCounter) Count(s string) int { return len(s) }

func (wordCounter) Truncate(s string, maxTokens int) string {
	if len(s) <= maxTokens {
		return s
	}
	return s[:maxTokens]
}

func TestBuildMessages_ExcludesTransient(t *testing.T) {
	c := New(&fakeProvider{}, Config{PrimaryModel: "m"})
	got := c.BuildMessages(Request{
		SystemPrompt: "be nice",
		History: []Turn{
			{Role: adapter.RoleUser, Content: "hi"},
			{Role: adapter.RoleAssistant, Content: "hello"},
			{Role: adapter.RoleUser, Content: "again"},
			{Role: adapter.RoleAssistant, Content: "", Transient: true},
		},
	})

	want := []adapter.Message{
		{Role: adapter.RoleSystem, Content: "be nice"},
		{Role: adapter.RoleUser, Content: "hi"},
		{Role: adapter.RoleAssistant, Content: "hello"},
		{Role: adapter.RoleUser, Content: "again"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildMessages_TrimsOldestToBudget(t *testing.T) {
	// system: 3+4, each turn: 10+4.
	c := New(&fakeProvider{}, Config{PrimaryModel: "m", MaxHistoryTokens: 7 + 14*2}, WithCounter(wordCounter{}))
	got := c.BuildMessages(Request{
		SystemPrompt: "sys",
		History: []Turn{
			{Role: adapter.RoleUser, Content: "aaaaaaaaaa"},
			{Role: adapter.RoleAssistant, Content: "bbbbbbbbbb"},
			{Role: adapter.RoleUser, Content: "cccccccccc"},
			{Role: adapter.RoleAssistant, Content: "dddddddddd"},
			{Role: adapter.RoleUser, Content: "eeeeeeeeee"},
		},
	})

	// Two turns fit ("dddd", "eeee"); the leading assistant turn is dropped.
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[1].Content != "eeeeeeeeee" || got[1].Role != adapter.RoleUser {
		t.Errorf("newest turn: %+v", got[1])
	}
}

func TestBuildMessages_AlwaysKeepsNewest(t *testing.T) {
	c := New(&fakeProvider{}, Config{PrimaryModel: "m", MaxHistoryTokens: 5}, WithCounter(wordCounter{}))
	got := c.BuildMessages(Request{
		SystemPrompt: "a long system prompt",
		History: []Turn{
			{Role: adapter.RoleUser, Content: "old"},
			{Role: adapter.RoleUser, Content: "a message far larger than the budget"},
		},
	})
	if len(got) != 2 || got[1].Content != "a message far larger than the budget" {
		t.Errorf("got %+v", got)
	}
}

func TestBuildMessages_CapsOversizedSystemPrompt(t *testing.T) {
	c := New(&fakeProvider{}, Config{PrimaryModel: "m", MaxHistoryTokens: 40}, WithCounter(wordCounter{}))
	long := strings.Repeat("s", 100)
	got := c.BuildMessages(Request{
		SystemPrompt: long,
		History: []Turn{
			{Role: adapter.RoleUser, Content: "first"},
			{Role: adapter.RoleAssistant, Content: "reply"},
			{Role: adapter.RoleUser, Content: "second"},
		},
	})

	if got[0].Role != adapter.RoleSystem || got[0].Content != long[:20] {
		t.Errorf("system prompt: %q", got[0].Content)
	}
	// 40 - (20+4) leaves 16: "second" (10) fits, "reply" (9) does not.
	if len(got) != 2 || got[1].Content != "second" {
		t.Errorf("got %+v", got)
	}
}

func TestBuildMessages_SystemPromptUntouchedWithoutBudget(t *testing.T) {
	c := New(&fakeProvider{}, Config{PrimaryModel: "m"}, WithCounter(wordCounter{}))
	long := strings.Repeat("s", 100)
	got := c.BuildMessages(Request{SystemPrompt: long})
	if len(got) != 1 || got[0].Content != long {
		t.Errorf("got %+v", got)
	}
}

func TestModels_SkipsEmpty(t *testing.T) {
	c := New(&fakeProvider{}, Config{PrimaryModel: "p", FallbackModels: []string{"", "f"}})
	got := c.Models()
	if len(got) != 2 || got[0] != "p" || got[1] != "f" {
		t.Errorf("got %v", got)
	}
}
