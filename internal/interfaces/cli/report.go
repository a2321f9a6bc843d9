package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

type reportOptions struct {
	kind   string
	format string
	out    string
	years  int
	topN   int
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report [applicant]",
		Short: "Compose and render a report",
		Long: "Compose an applicant report (kind visual, the default) or a market report\n" +
			"(kind analysis) and render it. Markdown and HTML are printed, PDF is stored\n" +
			"in the artifact store, and --out writes any format to a file instead.",
		Example: `  keyip-analytics report "Acme" --format md
  keyip-analytics report "Acme" --format pdf
  keyip-analytics report --kind analysis --format html --out market.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", string(report.KindVisual), "report kind: visual, patent or analysis")
	f.StringVar(&opts.format, "format", string(report.FormatMarkdown), "output format: md, html, pdf or json")
	f.StringVar(&opts.out, "out", "", "write the rendered report to this file")
	f.IntVar(&opts.years, "years", 0, "number of trend years; 0 selects the kind's default")
	f.IntVar(&opts.topN, "top", 0, "number of subclasses and applicants; 0 selects the kind's default")
	return cmd
}

func runReport(cmd *cobra.Command, args []string, opts *reportOptions) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	kind := report.Kind(opts.kind)
	if !kind.Valid() {
		return errors.Newf(errors.ErrCodeInvalidArguments, "invalid report kind %q; expected visual, patent or analysis", opts.kind)
	}

	req := reporting.ComposeRequest{Kind: kind, Years: opts.years, TopN: opts.topN}
	if len(args) == 1 {
		req.Applicant = args[0]
	}
	switch {
	case kind == report.KindVisual && req.Applicant == "":
		return errors.InvalidArguments("the visual report needs an applicant")
	case kind == report.KindAnalysis && req.Applicant != "":
		return errors.InvalidArguments("the analysis report covers the whole database and takes no applicant")
	}

	if opts.out != "" {
		return writeReport(cmd, req, format, opts.out)
	}

	switch kind {
	case report.KindVisual:
		return runTool(cmd, "generate_visual_report", map[string]interface{}{
			"applicant_name": req.Applicant,
			"format":         string(format),
		})
	case report.KindAnalysis:
		toolArgs := map[string]interface{}{"format": string(format)}
		setIfChanged(cmd, toolArgs, "years", "years", opts.years)
		setIfChanged(cmd, toolArgs, "top", "top_n", opts.topN)
		return runTool(cmd, "generate_analysis_report", toolArgs)
	}
	// The patent kind has no tool of its own.
	return generateReport(cmd, req, format)
}

// writeReport renders straight into a file, bypassing the artifact store.
func writeReport(cmd *cobra.Command, req reporting.ComposeRequest, format report.Format, path string) error {
	return withApp(cmd, func(ctx context.Context, cliCtx *CLIContext, a *app.App) error {
		b, err := a.Catalog.Get(cliCtx.Database)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(ctx, cliCtx)
		defer cancel()

		r, err := b.Reports.Compose(ctx, req)
		if err != nil {
			return err
		}
		data, err := b.Reports.Render(ctx, r, format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, errors.ErrCodeUnavailable, "write %s", path)
		}
		cliCtx.Logger.Debug("report written", logging.String("path", path), logging.Int("bytes", len(data)))
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s report %s to %s (%d bytes)\n", format, r.ID, path, len(data))
		return nil
	})
}

// generateReport stores the report through the report service.
func generateReport(cmd *cobra.Command, req reporting.ComposeRequest, format report.Format) error {
	return withApp(cmd, func(ctx context.Context, cliCtx *CLIContext, a *app.App) error {
		b, err := a.Catalog.Get(cliCtx.Database)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(ctx, cliCtx)
		defer cancel()

		artifact, err := b.Reports.Generate(ctx, reporting.GenerateRequest{ComposeRequest: req, Format: format})
		if err != nil {
			return err
		}
		return PrintResult(cmd, artifact)
	})
}

func commandContext(ctx context.Context, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout > 0 {
		return context.WithTimeout(ctx, cliCtx.Timeout)
	}
	return context.WithCancel(ctx)
}
