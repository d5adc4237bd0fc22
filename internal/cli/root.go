// Package cli defines the Cobra command tree for the personachat CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
}

// newRootCmd builds the command tree. Each call returns a fresh tree so
// flag state never leaks between runs.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "personachat",
		Short: "Chat with switchable AI personas that remember you",
		Long: `personachat is a terminal chat client for LLM personas.

Pick a built-in persona (corporate, sam) or define your own, and chat with
it through OpenRouter, OpenAI, Anthropic or Ollama. Facts you mention are
remembered across conversations, and personas can check in on their own
on a schedule that respects your quiet hours.

Run 'personachat chat' to start talking.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/personachat/config.toml)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(flags),
		newAskCmd(flags),
		newRememberCmd(flags),
		newForgetCmd(flags),
		newMemoriesCmd(flags),
		newPersonaCmd(flags),
		newSessionsCmd(flags),
		newProactiveCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "personachat %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
