package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/prharvest/internal/application"
)

// DiscoverOptions holds flags for the discover command.
type DiscoverOptions struct {
	*RootOptions
	Refresh bool
}

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiscoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Collect candidate repositories and store the licensed ones",
		Long: `Search every language partition for repositories above the star threshold,
drop repositories without an allowed license and store the rest as pending.

By default repositories already stored are left untouched. With --refresh their
owner, name, url, stars and license are overwritten; the processed flag is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setupPipeline(cmd.Context(), opts.RootOptions, 0, -1)
			if err != nil {
				return err
			}
			defer env.stores.Close()

			res, err := env.runner.Discover(cmd.Context(), persistMode(opts.Refresh))
			if err != nil {
				slog.Error("discovery failed", "error", err)
			}
			printDiscovery(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "overwrite metadata of repositories already stored")

	return cmd
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	BatchSize  int
	MaxBatches int
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate pending repositories and store qualifying pull requests",
		Long: `Select pending repositories in batches, sample their merged pull requests and
store those passing every gate. A repository is marked processed once its
results are stored; a repository that fails transiently stays pending and is
retried by the next invocation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setupPipeline(cmd.Context(), opts.RootOptions, opts.BatchSize, opts.MaxBatches)
			if err != nil {
				return err
			}
			defer env.stores.Close()

			res, err := env.runner.Validate(cmd.Context())
			if err != nil {
				slog.Error("validation failed", "error", err)
			}
			printValidation(cmd.OutOrStdout(), res)
			return nil
		},
	}

	addBatchFlags(cmd, &opts.BatchSize, &opts.MaxBatches)

	return cmd
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Refresh    bool
	BatchSize  int
	MaxBatches int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run discovery then validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setupPipeline(cmd.Context(), opts.RootOptions, opts.BatchSize, opts.MaxBatches)
			if err != nil {
				return err
			}
			defer env.stores.Close()

			res, err := env.runner.Run(cmd.Context(), persistMode(opts.Refresh))
			if err != nil {
				slog.Error("run finished with errors", "error", err)
			}
			printDiscovery(cmd.OutOrStdout(), res.Discovery)
			printValidation(cmd.OutOrStdout(), res.Validation)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "overwrite metadata of repositories already stored")
	addBatchFlags(cmd, &opts.BatchSize, &opts.MaxBatches)

	return cmd
}

func addBatchFlags(cmd *cobra.Command, batchSize, maxBatches *int) {
	cmd.Flags().IntVar(batchSize, "batch-size", 0, "pending repositories per batch (default from PRHARVEST_BATCH_SIZE)")
	cmd.Flags().IntVar(maxBatches, "max-batches", -1, "batch ceiling, 0 for none (default from PRHARVEST_MAX_BATCHES)")
}

func persistMode(refresh bool) application.PersistMode {
	if refresh {
		return application.UpsertOverwrite
	}
	return application.InsertNewOnly
}

func printDiscovery(w io.Writer, res application.DiscoveryResult) {
	fmt.Fprintf(w, "discovery: collected=%d licensed=%d written=%d\n", res.Collected, res.Licensed, res.Written)
	for _, p := range res.Partitions {
		fmt.Fprintf(w, "  %-12s pages=%d unique=%d stop=%s\n", p.Partition, p.Pages, p.Unique, p.Stop)
	}
}

func printValidation(w io.Writer, res application.ProcessResult) {
	fmt.Fprintf(w, "validation: batches=%d processed=%d failed=%d accepted_prs=%d\n",
		res.Batches, res.Processed, res.Failed, res.AcceptedPRs)
}
