// Package export renders chat transcripts into formats for sharing or
// archiving.
package export

import (
	"sort"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/conversation"
	"github.com/personachat/personachat/internal/memory"
)

// ExportData is passed to every Exporter.
type ExportData struct {
	Session     conversation.Session
	PersonaName string
	// Facts is optional; when set the exported transcript includes what
	// was remembered about the user.
	Facts []memory.Fact
}

// Exporter renders ExportData to a string in a specific format.
type Exporter interface {
	Export(data ExportData) (string, error)
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"markdown": &MarkdownExporter{},
	"json":     &JSONExporter{},
	"text":     &TextExporter{},
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported export format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}

// visible drops placeholders that never received a terminal state.
func visible(msgs []conversation.Message) []conversation.Message {
	out := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.State.InFlight() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func speaker(m conversation.Message, personaName string) string {
	if m.Role == adapter.RoleUser {
		return "You"
	}
	if personaName == "" {
		return "Assistant"
	}
	return personaName
}
