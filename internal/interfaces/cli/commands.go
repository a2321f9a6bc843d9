package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// withApp builds the application, runs fn and releases the application.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, cliCtx *CLIContext, a *app.App) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := cliCtx.App(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cliCtx.Close(); cerr != nil {
			cliCtx.Logger.Warn("failed to release resources", logging.Err(cerr))
		}
	}()
	return fn(ctx, cliCtx, a)
}

// runTool executes one dispatcher tool against the selected database and
// prints its response.
func runTool(cmd *cobra.Command, tool string, args map[string]interface{}) error {
	return withApp(cmd, func(ctx context.Context, cliCtx *CLIContext, a *app.App) error {
		if cliCtx.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
			defer cancel()
		}
		if cliCtx.Database != "" {
			args["db_type"] = cliCtx.Database
		}
		env := a.Dispatcher.Execute(ctx, tool, args)
		if !env.Success {
			return env.Err()
		}
		return PrintResult(cmd, env.Response)
	})
}

// setIfChanged copies an int flag into args only when the user set it, so
// the tool's schema default applies otherwise.
func setIfChanged(cmd *cobra.Command, args map[string]interface{}, flag, key string, value int) {
	if cmd.Flags().Changed(flag) {
		args[key] = value
	}
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL statement",
		Long: "Run one SELECT, EXPLAIN or PRAGMA read against the selected database.\n" +
			"Writes, multiple statements and PRAGMA assignments are rejected.",
		Example: `  keyip-analytics query "SELECT COUNT(*) FROM patents"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, "execute_sql_query", map[string]interface{}{
				"query": strings.Join(args, " "),
			})
		},
	}
}

func newAskCmd() *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a natural-language question through the configured translator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]interface{}{"question": strings.Join(args, " ")}
			setIfChanged(cmd, toolArgs, "max-results", "max_results", maxResults)
			return runTool(cmd, "natural_language_query", toolArgs)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 100, "maximum number of rows")
	return cmd
}

func newPatentCmd() *cobra.Command {
	var (
		applicant string
		limit     int
		exact     bool
	)
	cmd := &cobra.Command{
		Use:   "patent [application-number]",
		Short: "Look up a patent, or list the patents of an applicant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 1 && applicant != "":
				return errors.InvalidArguments("give either an application number or --applicant")
			case len(args) == 1:
				return runTool(cmd, "get_patent_by_application_number", map[string]interface{}{
					"application_number": args[0],
				})
			case applicant != "":
				toolArgs := map[string]interface{}{"applicant_name": applicant, "exact": exact}
				setIfChanged(cmd, toolArgs, "limit", "limit", limit)
				return runTool(cmd, "get_patents_by_applicant", toolArgs)
			}
			return errors.InvalidArguments("an application number or --applicant is required")
		},
	}
	cmd.Flags().StringVar(&applicant, "applicant", "", "list the patents of this applicant")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of patents")
	cmd.Flags().BoolVar(&exact, "exact", false, "match the whole applicant name")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show availability and record counts of every database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, cliCtx *CLIContext, a *app.App) error {
				env := a.Dispatcher.ReadResource(ctx, mcp.URIStatus)
				if !env.Success {
					return env.Err()
				}
				return PrintResult(cmd, env.Response)
			})
		},
	}
}
