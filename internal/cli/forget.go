package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/memory"
)

func newForgetCmd(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "forget [number]",
		Short: "Remove a remembered fact or reset memory",
		Long: `Remove a fact by its number from 'personachat memories list'. Without
a number the facts are listed and you pick one.

Examples:
  personachat forget 3
  personachat forget
  personachat forget --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			switch {
			case all:
				if !confirmPrompt(in, out, "This will delete ALL remembered facts and preferences. Continue?") {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
				if err := a.memory.Clear(ctx, a.cfg.User.ID); err != nil {
					return fmt.Errorf("clear memory: %w", err)
				}
				fmt.Fprintln(out, "Memory cleared.")
				return nil

			case len(args) == 1:
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid fact number %q", args[0])
				}
				return forgetFact(ctx, a, out, n)

			default:
				return forgetInteractive(ctx, a, in, out)
			}
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete all facts (requires confirmation)")

	return cmd
}

// forgetFact removes the n-th fact, counting from 1.
func forgetFact(ctx context.Context, a *app, out io.Writer, n int) error {
	facts, err := a.memory.Facts(ctx, a.cfg.User.ID)
	if err != nil {
		return err
	}
	if err := a.memory.Remove(ctx, a.cfg.User.ID, n-1); err != nil {
		if errors.Is(err, memory.ErrIndexOutOfRange) {
			return fmt.Errorf("no fact %d; there are %d", n, len(facts))
		}
		return err
	}
	fmt.Fprintf(out, "Forgot: %q\n", facts[n-1].Text)
	return nil
}

func forgetInteractive(ctx context.Context, a *app, in *bufio.Reader, out io.Writer) error {
	facts, err := a.memory.Facts(ctx, a.cfg.User.ID)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		fmt.Fprintln(out, "No memories stored.")
		return nil
	}

	fmt.Fprintf(out, "Remembered facts (%d):\n\n", len(facts))
	printFacts(out, facts)

	fmt.Fprint(out, "\nEnter fact number to forget (or 'q' to quit): ")
	line := readLineBuf(in)
	if line == "q" || line == "" {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return fmt.Errorf("invalid selection: %s", line)
	}
	return forgetFact(ctx, a, out, n)
}

func printFacts(out io.Writer, facts []memory.Fact) {
	for i, f := range facts {
		fmt.Fprintf(out, "  [%2d] %-15s %s\n", i+1, "["+string(f.Category)+"]", truncate(f.Text, 80))
	}
}
