package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
)

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Precompute embeddings for the job catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		jobs, err := catalog.LoadJobsCSV(e.cfg.Data.Jobs)
		if err != nil {
			return err
		}

		report, err := e.service.WarmupJobs(ctx, jobs)
		if err != nil {
			return err
		}

		e.logger.Info("warmup finished",
			zap.Int("requested", report.Requested),
			zap.Int("computed", report.Computed),
			zap.Int("cached", report.Cached),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the active model, strategy and pipeline stages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(context.Background())
		if err != nil {
			return err
		}
		defer e.close()

		return printJSON(cmd.OutOrStdout(), e.service.Describe())
	},
}

func init() {
	rootCmd.AddCommand(warmupCmd)
	rootCmd.AddCommand(describeCmd)
}
