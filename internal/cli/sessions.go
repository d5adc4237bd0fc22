package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/conversation"
	"github.com/personachat/personachat/internal/export"
)

func newSessionsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "chats"},
		Short:   "List and manage saved chats",
	}
	cmd.AddCommand(
		newSessionsListCmd(flags),
		newSessionsShowCmd(flags),
		newSessionsRenameCmd(flags),
		newSessionsDeleteCmd(flags),
		newSessionsRegenCmd(flags),
		newSessionsExportCmd(flags),
	)
	return cmd
}

func newSessionsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No chats yet. Start one with 'personachat chat'.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPERSONA\tMESSAGES\tMODIFIED\tTITLE")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.PersonaID, len(s.Messages),
					s.LastModified.Local().Format("2006-01-02 15:04"), truncate(s.Title, 40))
			}
			return tw.Flush()
		},
	}
}

func newSessionsShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a chat transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			s, err := a.sessions.Get(ctx, args[0])
			if err != nil {
				return sessionErr(err, args[0])
			}
			printTranscript(cmd.OutOrStdout(), s, a.personas.Resolve(ctx, s.PersonaID).Name)
			return nil
		},
	}
}

func newSessionsRenameCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.sessions.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return sessionErr(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed to %q.\n", s.Title)
			return nil
		},
	}
}

func newSessionsDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sessions.Delete(cmd.Context(), args[0]); err != nil {
				return sessionErr(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat %s.\n", args[0])
			return nil
		},
	}
}

func newSessionsRegenCmd(flags *globalFlags) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "regen <id>",
		Short: "Regenerate the last reply of a chat",
		Long: `Regenerate the last reply. With --from, the given message and everything
after it is discarded first; the chat must then end with one of your
messages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			anchor := from
			if anchor == "" {
				anchor = conversation.AnchorLast
			}
			printer := newReplyPrinter(cmd.OutOrStdout(), false)
			msg, err := a.sessions.RegenerateFrom(ctx, args[0], anchor, printer.chunk)
			if err != nil {
				printer.stopSpinner()
				return sessionErr(err, args[0])
			}
			printer.done(msg)
			if msg.State == conversation.StateError {
				return errors.New(msg.ErrorDetail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "message id to regenerate from")

	return cmd
}

func newSessionsExportCmd(flags *globalFlags) *cobra.Command {
	var (
		format    string
		outPath   string
		withFacts bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a chat transcript",
		Long: `Export a chat as markdown, JSON or plain text.

Examples:
  personachat sessions export 6f1c...
  personachat sessions export 6f1c... --format json --out chat.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, ok := export.Get(format)
			if !ok {
				return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(export.ValidFormats(), ", "))
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			s, err := a.sessions.Get(ctx, args[0])
			if err != nil {
				return sessionErr(err, args[0])
			}
			data := export.ExportData{Session: s, PersonaName: a.personas.Resolve(ctx, s.PersonaID).Name}
			if withFacts {
				if data.Facts, err = a.memory.Facts(ctx, a.cfg.User.ID); err != nil {
					return err
				}
			}

			content, err := exp.Export(data)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown, json or text")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&withFacts, "with-memory", false, "include remembered facts")

	return cmd
}

// sessionErr turns conversation errors into CLI-friendly ones.
func sessionErr(err error, id string) error {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		return fmt.Errorf("no chat %s; see 'personachat sessions list'", id)
	case errors.Is(err, conversation.ErrMessageNotFound):
		return fmt.Errorf("no such message in chat %s", id)
	case errors.Is(err, conversation.ErrNothingToRegenerate):
		return fmt.Errorf("chat %s has nothing to regenerate", id)
	default:
		return err
	}
}
