package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/conversation"
)

// replyPrinter renders a streamed reply: a spinner while the message is
// pending, then the text as it arrives.
type replyPrinter struct {
	out        io.Writer
	bar        *progressbar.ProgressBar
	started    bool
	showErrors bool
}

func newReplyPrinter(out io.Writer, showErrors bool) *replyPrinter {
	p := &replyPrinter{out: out, showErrors: showErrors}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("  Thinking"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		_ = p.bar.RenderBlank()
	}
	return p
}

func (p *replyPrinter) stopSpinner() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

func (p *replyPrinter) chunk(text string) {
	if !p.started {
		p.started = true
		p.stopSpinner()
	}
	fmt.Fprint(p.out, text)
}

// done finishes the reply line for the message's terminal state.
func (p *replyPrinter) done(msg conversation.Message) {
	p.stopSpinner()
	switch msg.State {
	case conversation.StateAborted:
		fmt.Fprintln(p.out, "\n[generation stopped]")
	case conversation.StateError:
		if p.showErrors {
			if p.started {
				fmt.Fprintln(p.out)
			}
			fmt.Fprintln(p.out, msg.Content)
		}
	default:
		fmt.Fprintln(p.out)
	}
}

func printTranscript(out io.Writer, s conversation.Session, assistantName string) {
	fmt.Fprintf(out, "%s\n", s.Title)
	fmt.Fprintf(out, "  id: %s | persona: %s | modified: %s\n\n", s.ID, s.PersonaID, s.LastModified.Local().Format("2006-01-02 15:04"))
	for _, m := range s.Messages {
		who := "you"
		if m.Role == adapter.RoleAssistant {
			who = assistantName
		}
		content := m.Content
		if m.State == conversation.StateAborted {
			content += " [stopped]"
		}
		fmt.Fprintf(out, "%s> %s\n", who, content)
		fmt.Fprintf(out, "   %s %s\n", m.ID, m.State)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
