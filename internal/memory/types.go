// Package memory stores the facts personachat remembers about a user and
// extracts new candidate facts from chat messages.
package memory

import (
	"strings"
	"time"
)

// Category classifies a remembered fact.
type Category string

const (
	CategoryExplicit     Category = "EXPLICIT"
	CategoryName         Category = "NAME"
	CategoryAge          Category = "AGE"
	CategoryLocation     Category = "LOCATION"
	CategoryJob          Category = "JOB"
	CategoryInterest     Category = "INTEREST"
	CategoryPreference   Category = "PREFERENCE"
	CategoryFamily       Category = "FAMILY"
	CategorySkill        Category = "SKILL"
	CategoryGoal         Category = "GOAL"
	CategoryForReference Category = "FOR_REFERENCE"
)

var categories = []Category{
	CategoryExplicit, CategoryName, CategoryAge, CategoryLocation, CategoryJob,
	CategoryInterest, CategoryPreference, CategoryFamily, CategorySkill,
	CategoryGoal, CategoryForReference,
}

// ValidCategory returns true if c is a recognised category.
func ValidCategory(c Category) bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, ValidCategory(c)
}

// UserRequested reports whether facts of this category were asked for
// directly by the user rather than detected automatically.
func (c Category) UserRequested() bool {
	return c == CategoryExplicit || c == CategoryForReference
}

// Fact is one remembered piece of information about a user.
type Fact struct {
	Text      string    `json:"text"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is the persisted per-user memory record. Facts are flat strings
// carrying a category prefix so older documents stay readable.
type Document struct {
	Facts                  []string          `json:"facts"`
	PersonalityPreferences map[string]string `json:"personality_preferences"`
	LastUpdated            time.Time         `json:"last_updated"`
}

// FactList decodes the document's facts.
func (d Document) FactList() []Fact {
	out := make([]Fact, 0, len(d.Facts))
	for _, raw := range d.Facts {
		f := Decode(raw)
		f.CreatedAt = d.LastUpdated
		out = append(out, f)
	}
	return out
}

// SetFacts replaces the document's facts with their encoded form.
func (d *Document) SetFacts(facts []Fact) {
	d.Facts = make([]string, 0, len(facts))
	for _, f := range facts {
		d.Facts = append(d.Facts, Encode(f))
	}
}
