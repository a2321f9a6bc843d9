// Package cli is the keyip-analytics command line: a cobra tree over the same
// MCP dispatcher the HTTP adapter serves.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	OutputJSON  = "json"
	OutputTable = "table"
	OutputText  = "text"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// AppFactory builds the application a command runs against.
type AppFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app.App, error)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	Database     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config *config.Config
	// ConfigPath is the file Config was loaded from; empty when it came from
	// the environment.
	ConfigPath   string
	Logger       logging.Logger
	OutputFormat string
	// Database is passed as db_type to every tool; empty selects the
	// default database.
	Database string
	Verbose  bool
	NoColor  bool
	Timeout  time.Duration

	factory AppFactory
	app     *app.App
}

// App builds the application on first use. Commands that only print
// configuration never open a database.
func (c *CLIContext) App(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := c.factory(ctx, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// Close releases the application when one was built.
func (c *CLIContext) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// Option customises the root command.
type Option func(*rootSettings)

type rootSettings struct {
	factory AppFactory
	config  *config.Config
	logger  logging.Logger
}

// WithAppFactory replaces app.New.
func WithAppFactory(f AppFactory) Option {
	return func(s *rootSettings) { s.factory = f }
}

// WithConfig skips config file discovery and uses cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *rootSettings) { s.config = cfg }
}

// WithLogger skips logger construction.
func WithLogger(logger logging.Logger) Option {
	return func(s *rootSettings) { s.logger = logger }
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands.
func NewRootCommand(options ...Option) *cobra.Command {
	settings := &rootSettings{factory: app.New}
	for _, o := range options {
		o(settings)
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "keyip-analytics",
		Short: "Patent analytics over SQLite patent stores",
		Long: "keyip-analytics answers trend, competition, landscape and assessment questions\n" +
			"over one or more SQLite patent databases, renders reports and serves the\n" +
			"same tools over HTTP and the MCP stdio protocol.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, settings)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./keyip-analytics.yaml)")
	pf.StringVar(&opts.Database, "db", "", "database name, or the path of a SQLite file to open directly")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (json, table, text)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "timeout of one command; 0 disables it")

	cmd.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newQueryCmd(),
		newAskCmd(),
		newPatentCmd(),
		newTrendsCmd(),
		newCompetitionCmd(),
		newLandscapeCmd(),
		newApplicantCmd(),
		newStatsCmd(),
		newReportCmd(),
		newStatusCmd(),
	)
	return cmd
}

// persistentPreRun initializes config and logger, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions, settings *rootSettings) error {
	switch opts.OutputFormat {
	case OutputJSON, OutputTable, OutputText:
	default:
		return errors.Newf(errors.ErrCodeInvalidArguments, "invalid output format %q; expected json, table or text", opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg := settings.config
	if cfg == nil {
		var err error
		if cfg, err = initConfig(cmd, opts); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidArguments, "config initialization failed")
		}
	}
	database, err := applyDatabaseFlag(cfg, opts.Database)
	if err != nil {
		return err
	}

	logger := settings.logger
	if logger == nil {
		level := cfg.Log.Level
		if opts.Verbose {
			level = "debug"
		}
		logger = logging.NewStderrLogger(level)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigPath:   opts.ConfigPath,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Database:     database,
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
		factory:      settings.factory,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flag > search path > env.
func initConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./keyip-analytics.yaml", "./configs/config.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".keyip-analytics", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/keyip-analytics/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			opts.ConfigPath = p
			return config.Load(p)
		}
	}

	if opts.Verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), "no config file found, using defaults and KEYIPA_* environment")
	}
	return config.LoadFromEnv()
}

// applyDatabaseFlag resolves --db. A configured database name selects that
// database; anything else is opened as a SQLite file with the canonical
// schema and becomes the only database.
func applyDatabaseFlag(cfg *config.Config, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if _, ok := cfg.Database(value); ok {
		return value, nil
	}
	if _, err := os.Stat(value); err != nil {
		names := make([]string, 0, len(cfg.Databases))
		for _, db := range cfg.Databases {
			names = append(names, db.Name)
		}
		return "", errors.Newf(errors.ErrCodeInvalidArguments,
			"--db %q is neither a configured database (%s) nor a readable file", value, strings.Join(names, ", "))
	}

	name := strings.TrimSuffix(filepath.Base(value), filepath.Ext(value))
	cfg.Databases = []config.DatabaseConfig{{Name: name, Path: value}}
	cfg.DefaultDatabase = name
	config.ApplyDefaults(cfg)
	return name, nil
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidArguments("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidArguments("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}
