package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank resumes against one job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("job", "", "job id to score against (asks interactively when unset)")
	scoreCmd.Flags().String("resumes", "", "directory with .txt/.md resumes (default is data.resumes)")
	scoreCmd.Flags().IntP("top", "n", 0, "print only the top N candidates")
	scoreCmd.Flags().StringP("output", "o", OutputText, "output format: text or json")
}

func score(cmd *cobra.Command) error {
	format, _ := cmd.Flags().GetString("output")
	if err := validateOutput(format); err != nil {
		return err
	}

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

	jobID, _ := cmd.Flags().GetString("job")
	job, err := pickJob(jobs, jobID)
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("resumes")
	if dir == "" {
		dir = e.cfg.Data.Resumes
	}
	candidates, err := catalog.LoadResumesDir(dir)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no resumes found in %s", dir)
	}

	e.logger.Info("scoring candidates",
		zap.String("job_id", job.ID),
		zap.String("job_title", job.Title),
		zap.Int("candidates", len(candidates)),
	)

	results, err := e.service.ScoreCandidates(ctx, job, candidates)
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	return printResults(cmd.OutOrStdout(), format, limit(results, top), false)
}
