package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/internal/observability"
	"github.com/xkilldash9x/bulksend/internal/results"
)

// retryDir is where a retry run writes when --out is not given.
const retryDir = "retry"

// newRetryCmd creates the `retry` command, which re-sends to every contact
// whose previous outcome was SEND_FAILED or ERROR.
func newRetryCmd() *cobra.Command {
	retryCmd := &cobra.Command{
		Use:   "retry [results.csv]",
		Short: "Run the failed contacts of a previous run as a new batch",
		Long: `Reads the master results table of a previous run (default <results.dir>/results.csv),
selects the rows with outcome SEND_FAILED or ERROR and sends to them again.
Results go to <results.dir>/retry unless --out is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}

			master := filepath.Join(cfg.Results.Dir, results.MasterFile)
			if len(args) == 1 {
				master = args[0]
			}
			// --out names only the destination; the previous run is still
			// looked up under the configured results directory.
			if cmd.Flags().Changed("out") {
				out, _ := cmd.Flags().GetString("out")
				if cfg.Results.Dir, err = homedir.Expand(out); err != nil {
					return fmt.Errorf("failed to expand --out: %w", err)
				}
			} else {
				cfg.Results.Dir = filepath.Join(filepath.Dir(master), retryDir)
			}

			previous, err := results.ReadMaster(master)
			if err != nil {
				return fmt.Errorf("failed to read previous results: %w", err)
			}
			list := previous.Retryable()
			logger.Info("Selected contacts for retry.",
				zap.String("from", master),
				zap.Int("previous", previous.Len()),
				zap.Int("retry", len(list)))
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to retry.")
				return nil
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runBatch(ctx, cfg, list, dryRun, cmd.OutOrStdout(), logger)
		},
	}

	flags := retryCmd.Flags()
	flags.StringP("out", "o", "", "Directory for the retry result tables.")
	flags.IntP("sessions", "j", 0, "Number of parallel browser sessions. (Overrides config/env)")
	flags.Bool("headless", false, "Run Chrome without a window. (Overrides config/env)")
	flags.Bool("dry-run", false, "Compose and print every message without opening a browser.")

	annotateFlag(flags, "sessions", "browser.sessions")
	annotateFlag(flags, "headless", "browser.headless")

	return retryCmd
}
