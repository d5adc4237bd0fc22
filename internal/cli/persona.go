package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/persona"
)

func newPersonaCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "persona",
		Aliases: []string{"personas"},
		Short:   "List, inspect and author personas",
	}
	cmd.AddCommand(
		newPersonaListCmd(flags),
		newPersonaShowCmd(flags),
		newPersonaCreateCmd(flags),
		newPersonaEditCmd(flags),
		newPersonaDeleteCmd(flags),
		newPersonaStylesCmd(),
	)
	return cmd
}

func newPersonaListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas with their chat counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list, err := a.personas.List(ctx)
			if err != nil {
				return err
			}
			counts, err := a.sessions.CountByPersona(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tCHATS\tDESCRIPTION")
			for _, p := range list {
				marker := ""
				if p.ID == a.personas.DefaultID() {
					marker = " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s%s\t%s\t%d\t%s\n", p.ID, p.Name, marker, p.Kind, counts[p.ID], truncate(p.Description, 50))
			}
			return tw.Flush()
		},
	}
}

func newPersonaShowCmd(flags *globalFlags) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a persona and the system prompt it sends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			p, ok := a.personas.Lookup(ctx, args[0])
			if !ok {
				return fmt.Errorf("no persona %q; see 'personachat persona list'", args[0])
			}

			out := cmd.OutOrStdout()
			printPersona(out, p)
			prompt := p.Prompt
			if !raw {
				facts, err := a.memory.Facts(ctx, a.cfg.User.ID)
				if err != nil {
					return err
				}
				prompt = persona.ComposePrompt(p, facts)
			}
			fmt.Fprintf(out, "\n--- system prompt ---\n%s\n", prompt)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "omit the remembered facts from the prompt")

	return cmd
}

func printPersona(out io.Writer, p persona.Persona) {
	fmt.Fprintf(out, "%s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(out, "  kind:        %s\n", p.Kind)
	if p.Description != "" {
		fmt.Fprintf(out, "  description: %s\n", p.Description)
	}
	for _, kv := range [][2]string{
		{"tone", string(p.Tone)},
		{"creativity", string(p.Creativity)},
		{"formality", string(p.Formality)},
		{"style", string(p.SpeakingStyle)},
	} {
		if kv[1] != "" {
			fmt.Fprintf(out, "  %-12s %s\n", kv[0]+":", kv[1])
		}
	}
}

// definitionFlags binds the persona authoring flags.
type definitionFlags struct {
	name, description, prompt          string
	tone, creativity, formality, style string
}

func (f *definitionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.description, "description", "", "one-line description")
	cmd.Flags().StringVar(&f.tone, "tone", "", "casual, professional or enthusiastic")
	cmd.Flags().StringVar(&f.creativity, "creativity", "", "conservative, balanced or creative")
	cmd.Flags().StringVar(&f.formality, "formality", "", "formal, informal or mixed")
	cmd.Flags().StringVar(&f.style, "style", "", "speaking style; see 'personachat persona styles'")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "full system prompt, used instead of a generated one")
}

func (f *definitionFlags) definition() persona.Definition {
	return persona.Definition{
		Name:          f.name,
		Description:   f.description,
		SystemPrompt:  f.prompt,
		Tone:          persona.Tone(f.tone),
		Creativity:    persona.Creativity(f.creativity),
		Formality:     persona.Formality(f.formality),
		SpeakingStyle: persona.SpeakingStyle(f.style),
	}
}

func newPersonaCreateCmd(flags *globalFlags) *cobra.Command {
	var def definitionFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom persona",
		Long: `Create a custom persona. Without --prompt, a system prompt is generated
from the tone, creativity, formality and style settings.

Examples:
  personachat persona create --name Pip --tone enthusiastic --style poetic
  personachat persona create --name Reviewer --prompt "You review code strictly."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.personas.Create(cmd.Context(), def.definition())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created persona %s (%s).\n", p.Name, p.ID)
			return nil
		},
	}
	def.register(cmd)

	return cmd
}

func newPersonaEditCmd(flags *globalFlags) *cobra.Command {
	var def definitionFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a custom persona",
		Long: `Change a custom persona. Only the flags you pass are changed. Changing
the name or any tone setting regenerates the prompt unless --prompt is
also given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			existing, ok := a.personas.Lookup(ctx, args[0])
			if !ok {
				return fmt.Errorf("no persona %q", args[0])
			}
			merged := mergeDefinition(existing, def, cmd.Flags().Changed)

			p, err := a.personas.Edit(ctx, args[0], merged)
			if errors.Is(err, persona.ErrBuiltin) {
				return fmt.Errorf("%s is built in; create a custom persona instead", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated persona %s (%s).\n", p.Name, p.ID)
			return nil
		},
	}
	def.register(cmd)

	return cmd
}

// mergeDefinition applies the changed flags over an existing persona.
func mergeDefinition(p persona.Persona, f definitionFlags, changed func(string) bool) persona.Definition {
	def := persona.Definition{
		Name:          p.Name,
		Description:   p.Description,
		SystemPrompt:  p.Prompt,
		Tone:          p.Tone,
		Creativity:    p.Creativity,
		Formality:     p.Formality,
		SpeakingStyle: p.SpeakingStyle,
	}
	regenerate := false
	if changed("name") {
		def.Name = f.name
		regenerate = true
	}
	if changed("description") {
		def.Description = f.description
	}
	if changed("tone") {
		def.Tone = persona.Tone(f.tone)
		regenerate = true
	}
	if changed("creativity") {
		def.Creativity = persona.Creativity(f.creativity)
		regenerate = true
	}
	if changed("formality") {
		def.Formality = persona.Formality(f.formality)
		regenerate = true
	}
	if changed("style") {
		def.SpeakingStyle = persona.SpeakingStyle(f.style)
		regenerate = true
	}
	switch {
	case changed("prompt"):
		def.SystemPrompt = f.prompt
	case regenerate:
		def.SystemPrompt = ""
	}
	return def
}

func newPersonaDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom persona; its chats move to the default persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return deletePersona(cmd.Context(), a, cmd.OutOrStdout(), args[0])
		},
	}
}

func deletePersona(ctx context.Context, a *app, out io.Writer, id string) error {
	counts, err := a.sessions.CountByPersona(ctx)
	if err != nil {
		return err
	}
	switch err := a.personas.Delete(ctx, id); {
	case errors.Is(err, persona.ErrBuiltin):
		return fmt.Errorf("%s is built in and cannot be deleted", id)
	case errors.Is(err, persona.ErrNotFound):
		return fmt.Errorf("no persona %q", id)
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Deleted persona %s.", id)
	if n := counts[id]; n > 0 {
		fmt.Fprintf(out, " %d chat(s) now use %s.", n, a.personas.DefaultID())
	}
	fmt.Fprintln(out)
	return nil
}

func newPersonaStylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the speaking styles a custom persona can use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range persona.SpeakingStyles() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
		},
	}
}
