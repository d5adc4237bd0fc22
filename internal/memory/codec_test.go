package memory

import (
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw      string
		category Category
		text     string
	}{
		{"NAME: Alice", CategoryName, "Alice"},
		{"FOR_REFERENCE: gate code 42", CategoryForReference, "gate code 42"},
		{"IMPORTANT: call mom", CategoryExplicit, "call mom"},
		{"FOR REFERENCE: wifi password on fridge", CategoryForReference, "wifi password on fridge"},
		{"USER'S NAME: Bob", CategoryName, "Bob"},
		{"Note: buy milk", CategoryExplicit, "Note: buy milk"},
		{"likes tea", CategoryExplicit, "likes tea"},
	}
	for _, tt := range tests {
		got := Decode(tt.raw)
		if got.Category != tt.category || got.Text != tt.text {
			t.Errorf("Decode(%q) = {%s %q}, want {%s %q}", tt.raw, got.Category, got.Text, tt.category, tt.text)
		}
	}
}

func TestEncode_StripsRedundantPrefix(t *testing.T) {
	got := Encode(Fact{Category: CategoryName, Text: "NAME: Alice"})
	if got != "NAME: Alice" {
		t.Errorf("got %q", got)
	}
	if Decode(got).Category != CategoryName {
		t.Errorf("category lost: %q", got)
	}
}

func TestFormatContext(t *testing.T) {
	facts := []Fact{
		{Category: CategoryJob, Text: "User works as/is a pilot"},
		{Category: CategoryExplicit, Text: "the meeting moved to Friday"},
		{Category: CategoryName, Text: "Alice"},
		{Category: CategoryForReference, Text: "locker 12"},
	}
	got := FormatContext(facts)

	want := "\n\nThings you remember about this user:" +
		"\n\nUSER'S NAME: Alice (use this name when talking to them)" +
		"\n\nEXPLICIT MEMORIES (they specifically asked you to remember these):" +
		"\n- the meeting moved to Friday" +
		"\n- locker 12" +
		"\n\nAUTO-DETECTED INFO:" +
		"\n- User works as/is a pilot"
	if got != want {
		t.Errorf("FormatContext mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("expected empty block, got %q", got)
	}
}

func TestFormatContext_OnlyName(t *testing.T) {
	got := FormatContext([]Fact{{Category: CategoryName, Text: "NAME: Alice"}})
	if !strings.Contains(got, "Alice") {
		t.Errorf("missing name: %q", got)
	}
	if strings.Contains(got, "NAME: NAME") || strings.Contains(got, "AUTO-DETECTED") || strings.Contains(got, "EXPLICIT") {
		t.Errorf("unexpected sections: %q", got)
	}
}
