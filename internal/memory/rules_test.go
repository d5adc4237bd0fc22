package memory

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Fact
	}{
		{
			name: "explicit remember that",
			text: "Remember that the meeting moved to Friday",
			want: []Fact{{Category: CategoryExplicit, Text: "the meeting moved to Friday"}},
		},
		{
			name: "addressed remember",
			text: "Sam, remember I have a dentist appointment",
			want: []Fact{{Category: CategoryExplicit, Text: "I have a dentist appointment"}},
		},
		{
			name: "for reference",
			text: "for future reference: my locker code is 1234",
			want: []Fact{{Category: CategoryForReference, Text: "my locker code is 1234"}},
		},
		{
			name: "explicit rules all fire",
			text: "remember that the rent is due. note: bring the laptop",
			want: []Fact{
				{Category: CategoryExplicit, Text: "the rent is due. note: bring the laptop"},
				{Category: CategoryExplicit, Text: "bring the laptop"},
			},
		},
		{
			name: "name and location",
			text: "I'm Alice and I live in Paris",
			want: []Fact{
				{Category: CategoryName, Text: "Alice"},
				{Category: CategoryLocation, Text: "User is from/lives in Paris"},
			},
		},
		{
			name: "only first name kept",
			text: "My name is Bob. Call me Bobby",
			want: []Fact{{Category: CategoryName, Text: "Bob"}},
		},
		{
			name: "age is not a name",
			text: "I'm 25 years old",
			want: []Fact{{Category: CategoryAge, Text: "User is 25 years old"}},
		},
		{
			name: "short name capture skipped",
			text: "I'm a software engineer",
			want: []Fact{{Category: CategoryJob, Text: "User works as/is a software engineer"}},
		},
		{
			name: "common word is not a name",
			text: "I'm from Berlin",
			want: []Fact{{Category: CategoryLocation, Text: "User is from/lives in Berlin"}},
		},
		{
			name: "preference keeps whole phrase",
			text: "I prefer Working Late",
			want: []Fact{{Category: CategoryPreference, Text: "User i prefer working late"}},
		},
		{
			name: "family",
			text: "I have a sister",
			want: []Fact{{Category: CategoryFamily, Text: "User has/mentions their sister"}},
		},
		{
			name: "addressed without comma",
			text: "sam remember the rent is due Friday",
			want: []Fact{{Category: CategoryExplicit, Text: "the rent is due Friday"}},
		},
		{
			name: "leading interjection is not an address",
			text: "Well, remember the last time we talked about it?",
			want: nil,
		},
		{
			name: "leading adverb is not an address",
			text: "Honestly, don't forget your umbrella today",
			want: nil,
		},
		{
			name: "name after a rejected word",
			text: "I'm tired, but my name is Bob",
			want: []Fact{{Category: CategoryName, Text: "Bob"}},
		},
		{
			name: "later name phrase after rejected match",
			text: "I'm just here. I am Carla",
			want: []Fact{{Category: CategoryName, Text: "Carla"}},
		},
		{
			name: "too short explicit",
			text: "remember: ok",
			want: nil,
		},
		{
			name: "nothing to extract",
			text: "hello there",
			want: nil,
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q)\n got  %+v\n want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtract_CurlyApostrophe(t *testing.T) {
	got := Extract("Don’t forget that my flight leaves at noon")
	if len(got) == 0 || got[0].Text != "my flight leaves at noon" {
		t.Errorf("got %+v", got)
	}
}

func TestExtractWith_CustomTable(t *testing.T) {
	rules := []Rule{
		{Category: CategoryGoal, FirstMatchOnly: true, Pattern: rx(`goal:\s*(.+)`)},
		{Category: CategoryGoal, FirstMatchOnly: true, Pattern: rx(`aim:\s*(.+)`)},
	}
	got := ExtractWith(rules, "goal: run a marathon, aim: sub four hours")
	if len(got) != 1 {
		t.Fatalf("expected first-match-only to keep 1 fact, got %d", len(got))
	}
	if got[0].Text != "run a marathon, aim: sub four hours" {
		t.Errorf("text: got %q", got[0].Text)
	}
}
