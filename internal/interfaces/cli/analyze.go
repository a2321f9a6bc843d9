package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

type trendsOptions struct {
	applicant string
	ipcPrefix string
	years     int
	topN      int
	startYear int
	endYear   int
}

func newTrendsCmd() *cobra.Command {
	opts := &trendsOptions{}
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Patents per year by technology, applicant or classification",
		Long: "Without flags, counts patents per year for the most active IPC subclasses.\n" +
			"--applicant breaks one applicant's filings down by IPC section;\n" +
			"--ipc ranks the applicants filing under a classification prefix.",
		Example: `  keyip-analytics trends --years 5 --top 3
  keyip-analytics trends --applicant "Acme" --start 2018
  keyip-analytics trends --ipc G06F -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrends(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.applicant, "applicant", "", "analyze one applicant")
	f.StringVar(&opts.ipcPrefix, "ipc", "", "rank applicants within an IPC prefix such as G06F")
	f.IntVar(&opts.years, "years", 10, "number of years for technology trends")
	f.IntVar(&opts.topN, "top", 5, "number of subclasses for technology trends")
	f.IntVar(&opts.startYear, "start", 0, "first application year")
	f.IntVar(&opts.endYear, "end", 0, "last application year")
	return cmd
}

func runTrends(cmd *cobra.Command, opts *trendsOptions) error {
	if opts.applicant != "" && opts.ipcPrefix != "" {
		return errors.InvalidArguments("--applicant and --ipc are mutually exclusive")
	}
	windowed := func(args map[string]interface{}) map[string]interface{} {
		setIfChanged(cmd, args, "start", "start_year", opts.startYear)
		setIfChanged(cmd, args, "end", "end_year", opts.endYear)
		return args
	}

	switch {
	case opts.applicant != "":
		return runTool(cmd, "analyze_applicant_trends", windowed(map[string]interface{}{
			"applicant_name": opts.applicant,
		}))
	case opts.ipcPrefix != "":
		return runTool(cmd, "analyze_classification_trends", windowed(map[string]interface{}{
			"ipc_prefix": opts.ipcPrefix,
		}))
	}
	if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
		return errors.InvalidArguments("--start and --end apply to --applicant or --ipc; use --years for technology trends")
	}
	args := map[string]interface{}{}
	setIfChanged(cmd, args, "years", "years", opts.years)
	setIfChanged(cmd, args, "top", "top_n", opts.topN)
	return runTool(cmd, "analyze_technology_trends", args)
}

func newCompetitionCmd() *cobra.Command {
	var (
		topN        int
		applicant   string
		competitors int
	)
	cmd := &cobra.Command{
		Use:   "competition",
		Short: "Top applicants and their technology overlap, or the competitors of one applicant",
		Example: `  keyip-analytics competition --top 5
  keyip-analytics competition --applicant "Acme" --competitors 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if applicant != "" {
				toolArgs := map[string]interface{}{"applicant_name": applicant}
				setIfChanged(cmd, toolArgs, "competitors", "num_competitors", competitors)
				return runTool(cmd, "compare_with_competitors", toolArgs)
			}
			toolArgs := map[string]interface{}{}
			setIfChanged(cmd, toolArgs, "top", "top_n", topN)
			return runTool(cmd, "analyze_applicant_competition", toolArgs)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "number of applicants")
	cmd.Flags().StringVar(&applicant, "applicant", "", "find the competitors of this applicant")
	cmd.Flags().IntVar(&competitors, "competitors", 3, "number of competitors")
	return cmd
}

func newLandscapeCmd() *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "landscape",
		Short: "Patent counts by IPC hierarchy level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]interface{}{}
			setIfChanged(cmd, toolArgs, "level", "ipc_level", level)
			return runTool(cmd, "analyze_patent_landscape", toolArgs)
		},
	}
	cmd.Flags().IntVar(&level, "level", 3, "1=section, 2=class, 3=subclass")
	return cmd
}

func newApplicantCmd() *cobra.Command {
	var (
		assessment bool
		fields     bool
	)
	cmd := &cobra.Command{
		Use:   "applicant <name>",
		Short: "Profile an applicant",
		Long: "Show an applicant's filing history, top IPC subclasses and assessment.\n" +
			"--assessment and --fields narrow the output to one analysis.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]interface{}{"applicant_name": args[0]}
			switch {
			case assessment && fields:
				return errors.InvalidArguments("--assessment and --fields are mutually exclusive")
			case assessment:
				return runTool(cmd, "analyze_assessment_ratios", toolArgs)
			case fields:
				return runTool(cmd, "analyze_technical_fields", toolArgs)
			}
			return runTool(cmd, "get_applicant_summary", toolArgs)
		},
	}
	cmd.Flags().BoolVar(&assessment, "assessment", false, "show only grant ratios and the industry comparison")
	cmd.Flags().BoolVar(&fields, "fields", false, "show only the IPC distribution and technical domains")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Totals, filing histogram and top applicants of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]interface{}{}
			setIfChanged(cmd, toolArgs, "top", "top_applicants", topN)
			return runTool(cmd, "get_patent_stats", toolArgs)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "number of top applicants")
	return cmd
}
