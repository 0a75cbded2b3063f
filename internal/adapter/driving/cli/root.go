// Package cli is the command-line driving adapter. It loads configuration,
// wires adapters into the application services and exposes each pipeline
// phase as a subcommand.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/prharvest/internal/config"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "prharvest",
		Short: "Discover permissively licensed GitHub repositories and harvest qualifying pull requests",
		Long: `prharvest searches GitHub for popular repositories per language, keeps those
under an allowed license, and samples their merged pull requests. A pull request
is kept when it is large, touches test files and its head commit is green.

Examples:
	# Collect and store candidate repositories
	prharvest discover

	# Validate pending repositories in batches
	prharvest validate --batch-size 50

	# Both phases in order
	prharvest run

	# Serve the harvested data over HTTP
	prharvest serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")

	cmd.AddCommand(NewDiscoverCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// SetBuildInfo records the values injected at link time.
func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

// BuildInfo returns the version, commit and build date.
func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

// loadConfig reads and validates the environment, then installs the default
// logger.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}
