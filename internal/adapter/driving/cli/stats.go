package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print repository and pull request counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.repos.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "repositories:  %d\n", s.Repositories)
			fmt.Fprintf(w, "  processed:   %d\n", s.Processed)
			fmt.Fprintf(w, "  pending:     %d\n", s.Pending)
			fmt.Fprintf(w, "pull requests: %d\n", s.PullRequests)
			return nil
		},
	}
}
