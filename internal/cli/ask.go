package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/conversation"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	var (
		personaID string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the streamed reply",
		Long: `Send a single message to a persona and stream the reply to stdout.

Without --session a new chat is started. Ctrl-C stops the reply and keeps
what was received so far.

Examples:
  personachat ask "Draft a polite reminder about the invoice"
  personachat ask --persona sam "what should I cook tonight"
  personachat ask --session 6f1c... "and what about dessert?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if sessionID == "" {
				s, err := a.sessions.Create(ctx, personaID)
				if err != nil {
					return fmt.Errorf("create session: %w", err)
				}
				sessionID = s.ID
			}

			printer := newReplyPrinter(cmd.OutOrStdout(), false)
			msg, err := a.sessions.Send(ctx, sessionID, text, printer.chunk)
			if err != nil {
				printer.stopSpinner()
				if errors.Is(err, conversation.ErrSessionNotFound) {
					return fmt.Errorf("no session %s; see 'personachat sessions list'", sessionID)
				}
				return err
			}
			printer.done(msg)

			if msg.State == conversation.StateError {
				return errors.New(msg.ErrorDetail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "persona id for a new session (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue an existing session")

	return cmd
}
