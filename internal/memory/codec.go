package memory

import "strings"

// legacyPrefixes maps prefixes written by older clients to their category.
var legacyPrefixes = []struct {
	prefix   string
	category Category
}{
	{"IMPORTANT: ", CategoryExplicit},
	{"FOR REFERENCE: ", CategoryForReference},
	{"USER'S NAME: ", CategoryName},
}

// Encode renders a fact as "CATEGORY: text".
func Encode(f Fact) string {
	cat := f.Category
	if !ValidCategory(cat) {
		cat = CategoryExplicit
	}
	return string(cat) + ": " + stripPrefix(f.Text, cat)
}

// Decode parses an encoded fact. Strings without a known prefix are treated
// as facts the user typed in directly.
func Decode(raw string) Fact {
	raw = strings.TrimSpace(raw)
	for _, lp := range legacyPrefixes {
		if strings.HasPrefix(raw, lp.prefix) {
			return Fact{Category: lp.category, Text: strings.TrimSpace(raw[len(lp.prefix):])}
		}
	}
	if i := strings.Index(raw, ": "); i > 0 {
		if cat := Category(raw[:i]); ValidCategory(cat) {
			return Fact{Category: cat, Text: strings.TrimSpace(raw[i+2:])}
		}
	}
	return Fact{Category: CategoryExplicit, Text: raw}
}

// stripPrefix removes a redundant "CATEGORY: " already present in text.
func stripPrefix(text string, cat Category) string {
	p := string(cat) + ": "
	if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
		return strings.TrimSpace(text[len(p):])
	}
	return strings.TrimSpace(text)
}
