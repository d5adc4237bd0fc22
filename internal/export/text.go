package export

import (
	"fmt"
	"strings"
)

// TextExporter renders a plain transcript, one speaker line per message.
type TextExporter struct{}

func (e *TextExporter) Export(data ExportData) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", data.Session.Title, strings.Repeat("=", len([]rune(data.Session.Title))))
	for _, m := range visible(data.Session.Messages) {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.UTC().Format("2006-01-02 15:04"), speaker(m, data.PersonaName), m.Content)
	}
	return b.String(), nil
}
