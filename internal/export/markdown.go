package export

import (
	"fmt"
	"strings"

	"github.com/personachat/personachat/internal/conversation"
)

// MarkdownExporter renders a transcript as markdown.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(data ExportData) (string, error) {
	s := data.Session

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "| Persona | %s |\n", displayPersona(data))
	fmt.Fprintf(&b, "| Started | %s |\n", s.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "| Last active | %s |\n\n", s.LastModified.UTC().Format("2006-01-02 15:04 UTC"))

	for _, m := range visible(s.Messages) {
		fmt.Fprintf(&b, "**%s:**\n\n%s\n", speaker(m, data.PersonaName), m.Content)
		if m.State == conversation.StateAborted {
			b.WriteString("\n_(stopped)_\n")
		}
		b.WriteString("\n")
	}

	if len(data.Facts) > 0 {
		b.WriteString("## Remembered\n\n")
		for _, f := range data.Facts {
			fmt.Fprintf(&b, "- %s _(%s)_\n", f.Text, strings.ToLower(string(f.Category)))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func displayPersona(data ExportData) string {
	if data.PersonaName == "" {
		return data.Session.PersonaID
	}
	return fmt.Sprintf("%s (%s)", data.PersonaName, data.Session.PersonaID)
}
