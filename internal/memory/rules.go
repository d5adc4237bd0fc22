package memory

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one entry of the ordered extraction table.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
	// MinLen discards captures whose trimmed length is not greater than it.
	MinLen int
	// FirstMatchOnly skips the rule once an earlier rule of the same
	// category has produced a fact in this call.
	FirstMatchOnly bool
	// Format wraps the captured text; empty keeps it verbatim.
	Format string
	// WholeMatch stores the full matched phrase, lower-cased, instead of
	// the capture group.
	WholeMatch bool
	// Reject lists captures (lower-cased) that are never a valid value.
	Reject map[string]bool
}

const apos = `['’]`

// notNames are words that commonly follow "I'm" without being a name.
var notNames = words(`a an the from in at on not so very just really here there fine good ok okay
	sorry trying looking working interested into planning called also still glad happy sure
	tired back new done going getting having doing feeling thinking about always never usually
	good bad busy free available ready excited afraid learning using writing reading curious`)

func words(s string) map[string]bool {
	m := map[string]bool{}
	for _, w := range strings.Fields(s) {
		m[w] = true
	}
	return m
}

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + strings.ReplaceAll(pattern, "'", apos))
}

// Rules is the default table. Explicit rules come first and may all fire;
// every auto-detected category contributes at most one fact.
var Rules = []Rule{
	{Category: CategoryExplicit, MinLen: 3, Pattern: rx(`(?:remember that|keep in mind that|don't forget that|note that)\s+(.+)`)},
	{Category: CategoryExplicit, MinLen: 3, Pattern: rx(`(?:remember this|keep this in mind|don't forget this|note this):\s*(.+)`)},
	{Category: CategoryExplicit, MinLen: 3, Pattern: rx(`(?:remember|keep in mind|don't forget|note):\s*(.+)`)},
	{Category: CategoryExplicit, MinLen: 3, Pattern: rx(`\bsam(?:,\s*|\s+)(?:remember|keep in mind|don't forget)\s+(.+)`)},
	{Category: CategoryForReference, MinLen: 3, Pattern: rx(`(?:for later|for future reference|for next time):\s*(.+)`)},
	{Category: CategoryForReference, MinLen: 3, Pattern: rx(`(?:save this|store this|bookmark this):\s*(.+)`)},

	{Category: CategoryName, MinLen: 1, FirstMatchOnly: true, Reject: notNames, Pattern: rx(`\b(?:i'm called|my name is|call me|i'm|i am)\s+([a-z]+)`)},
	{Category: CategoryName, MinLen: 1, FirstMatchOnly: true, Reject: notNames, Pattern: rx(`\b(?:this is|hey i'm|hi i'm|hello i'm)\s+([a-z]+)`)},
	{Category: CategoryName, MinLen: 1, FirstMatchOnly: true, Reject: notNames, Pattern: rx(`\b(?:my name's|name's)\s+([a-z]+)`)},
	{Category: CategoryName, MinLen: 1, FirstMatchOnly: true, Reject: notNames, Pattern: rx(`\b(?:everyone calls me|people call me|just call me)\s+([a-z]+)`)},

	{Category: CategoryAge, FirstMatchOnly: true, Format: "User is %s years old", Pattern: rx(`\b(?:i'm|i am)\s+(\d+)\s+(?:years old|year old|years|yo)\b`)},
	{Category: CategoryLocation, MinLen: 2, FirstMatchOnly: true, Format: "User is from/lives in %s", Pattern: rx(`\b(?:i live in|i'm from|i'm in|from)\s+([a-z\s]+)`)},
	{Category: CategoryJob, MinLen: 2, FirstMatchOnly: true, Format: "User works as/is a %s", Pattern: rx(`\b(?:i work as|i'm a|i am a|my job is|i work at)\s+([a-z\s]+)`)},
	{Category: CategoryInterest, MinLen: 2, FirstMatchOnly: true, Format: "User likes/enjoys %s", Pattern: rx(`\b(?:i like|i love|i enjoy|i'm into|i'm interested in)\s+([a-z\s]+)`)},
	{Category: CategoryPreference, MinLen: 3, FirstMatchOnly: true, WholeMatch: true, Format: "User %s", Pattern: rx(`\b(?:i prefer|i usually|i always|i never)\s+([a-z\s]+)`)},
	{Category: CategoryFamily, FirstMatchOnly: true, Format: "User has/mentions their %s", Pattern: rx(`\b(?:my|i have an?|i have)\s+(wife|husband|mom|dad|mother|father|sister|brother|son|daughter|kids|children|family)\b`)},
	{Category: CategorySkill, MinLen: 2, FirstMatchOnly: true, Format: "User can/knows %s", Pattern: rx(`\b(?:i can|i know how to|i'm good at|i'm skilled in)\s+([a-z\s]+)`)},
	{Category: CategoryGoal, MinLen: 3, FirstMatchOnly: true, Format: "User wants to/plans to %s", Pattern: rx(`\b(?:i want to|i plan to|i'm planning to|my goal is to|i aim to)\s+([a-z\s]+)`)},
}

// Extract applies the default rule table to text.
func Extract(text string) []Fact {
	return ExtractWith(Rules, text)
}

// ExtractWith applies rules in order and returns candidate facts. It never
// mutates any store and returns nil when nothing matches.
func ExtractWith(rules []Rule, text string) []Fact {
	var (
		out  []Fact
		seen = map[Category]bool{}
	)
	for _, r := range rules {
		if r.FirstMatchOnly && seen[r.Category] {
			continue
		}
		captured, ok := r.firstCapture(text)
		if !ok {
			continue
		}
		out = append(out, Fact{Category: r.Category, Text: captured})
		seen[r.Category] = true
	}
	return out
}

// firstCapture returns the formatted value of the leftmost match that
// survives MinLen and Reject.
func (r Rule) firstCapture(text string) (string, bool) {
	for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
		if len(m) < 2 {
			continue
		}
		captured := strings.TrimSpace(m[1])
		if len(captured) <= r.MinLen {
			continue
		}
		if r.Reject[strings.ToLower(captured)] {
			continue
		}
		if r.WholeMatch {
			captured = strings.ToLower(strings.TrimSpace(m[0]))
		}
		if r.Format != "" {
			captured = fmt.Sprintf(r.Format, captured)
		}
		return captured, true
	}
	return "", false
}
