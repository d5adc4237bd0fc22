package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/memory"
)

func newMemoriesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memories",
		Aliases: []string{"memory", "mem"},
		Short:   "Inspect and manage what personachat remembers about you",
	}
	cmd.AddCommand(
		newMemoriesListCmd(flags),
		newMemoriesContextCmd(flags),
		newMemoriesUpdateCmd(flags),
		newMemoriesExtractCmd(),
		newMemoriesExportCmd(flags),
		newMemoriesImportCmd(flags),
		newMemoriesPrefCmd(flags),
	)
	return cmd
}

func newMemoriesListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remembered facts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			facts, err := a.memory.Facts(cmd.Context(), a.cfg.User.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(facts) == 0 {
				fmt.Fprintln(out, "No memories stored.")
				return nil
			}
			fmt.Fprintf(out, "Remembered facts (%d of %d):\n\n", len(facts), a.memory.MaxFacts())
			printFacts(out, facts)
			return nil
		},
	}
}

func newMemoriesContextCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Print the memory block added to system prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			block, err := a.memory.Context(cmd.Context(), a.cfg.User.ID)
			if err != nil {
				return err
			}
			if block == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No memories stored.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimLeft(block, "\n"))
			return nil
		},
	}
}

func newMemoriesUpdateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update <number> <text>",
		Short: "Rewrite a fact, keeping its category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid fact number %q", args[0])
			}
			text := strings.Join(args[1:], " ")

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			switch err := a.memory.Update(cmd.Context(), a.cfg.User.ID, n-1, text); {
			case errors.Is(err, memory.ErrIndexOutOfRange):
				return fmt.Errorf("no fact %d", n)
			case errors.Is(err, memory.ErrDuplicate):
				return fmt.Errorf("that fact is already remembered")
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated fact %d.\n", n)
			return nil
		},
	}
}

func newMemoriesExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text>",
		Short: "Show which facts would be learned from a message, without saving",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facts := memory.Extract(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if len(facts) == 0 {
				fmt.Fprintln(out, "No facts detected.")
				return nil
			}
			printFacts(out, facts)
			return nil
		},
	}
}

func newMemoriesExportCmd(flags *globalFlags) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write your memory document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			if err := a.memory.Export(cmd.Context(), a.cfg.User.ID, w); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")

	return cmd
}

func newMemoriesImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a previously exported memory document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.memory.Import(cmd.Context(), a.cfg.User.ID, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new fact(s).\n", n)
			return nil
		},
	}
}

func newMemoriesPrefCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Manage personality preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> [value]",
		Short: "Set a preference; an empty value removes it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.memory.SetPreferences(cmd.Context(), a.cfg.User.ID, map[string]string{args[0]: value}); err != nil {
				return err
			}
			if value == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.memory.Document(cmd.Context(), a.cfg.User.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(doc.PersonalityPreferences) == 0 {
				fmt.Fprintln(out, "No preferences set.")
				return nil
			}
			keys := make([]string, 0, len(doc.PersonalityPreferences))
			for k := range doc.PersonalityPreferences {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s = %s\n", k, doc.PersonalityPreferences[k])
			}
			return nil
		},
	})

	return cmd
}
