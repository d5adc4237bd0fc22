package cli

import (
	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/mcp"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory and personas over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout so other assistants
can read and add to what personachat remembers about you.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewServer(a.memory, a.personas, a.cfg.User.ID, version, a.log).ServeStdio()
		},
	}
}
