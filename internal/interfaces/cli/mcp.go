package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools as JSON-RPC over stdin and stdout",
		Long: "Speak line-delimited JSON-RPC 2.0 on stdin and stdout until stdin closes.\n" +
			"Logs go to stderr so they never interleave with protocol messages.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return withApp(cmd, func(ctx context.Context, cliCtx *CLIContext, a *app.App) error {
				return a.StdioServer(cmd.InOrStdin(), cmd.OutOrStdout()).Serve(ctx)
			})
		},
	}
}
