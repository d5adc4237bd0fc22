package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/memory"
)

func newRememberCmd(flags *globalFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "remember <fact>",
		Short: "Store a fact every persona should know about you",
		Long: `Save a fact to your memory. Remembered facts are added to the system
prompt of every persona.

Examples:
  personachat remember "I'm allergic to peanuts"
  personachat remember "My sister is called Ana" --category family
  personachat remember "Project deadline is March 3" -c for_reference`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("nothing to remember")
			}

			cat := memory.CategoryExplicit
			if category != "" {
				c, ok := memory.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q", category)
				}
				cat = c
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			added, err := a.memory.Add(cmd.Context(), a.cfg.User.ID, memory.Fact{Text: text, Category: cat})
			if err != nil {
				return fmt.Errorf("store fact: %w", err)
			}
			out := cmd.OutOrStdout()
			if !added {
				fmt.Fprintln(out, "Already remembered.")
				return nil
			}
			fmt.Fprintf(out, "Remembered as %s:\n  %q\n", cat, text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "fact category (default explicit)")

	return cmd
}
