package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank the job catalog for one resume",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "resume file (.txt or .md)")
	matchCmd.Flags().StringSlice("skills", nil, "declared skills merged into the resume skills")
	matchCmd.Flags().IntP("top", "n", 10, "print only the top N jobs, 0 prints all")
	matchCmd.Flags().StringP("output", "o", OutputText, "output format: text or json")
}

func match(cmd *cobra.Command) error {
	format, _ := cmd.Flags().GetString("output")
	if err := validateOutput(format); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("resume")
	if path == "" {
		return errors.New("--resume is required")
	}

	ctx := context.Background()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	candidate, err := catalog.LoadResume(path)
	if err != nil {
		return err
	}
	declared, _ := cmd.Flags().GetStringSlice("skills")
	candidate.Skills = append(candidate.Skills, declared...)

	jobs, err := catalog.LoadJobsCSV(e.cfg.Data.Jobs)
	if err != nil {
		return err
	}

	e.logger.Info("matching jobs", zap.String("candidate_id", candidate.ID), zap.Int("jobs", len(jobs)))

	results, err := e.service.MatchJobs(ctx, candidate, jobs)
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	return printResults(cmd.OutOrStdout(), format, limit(results, top), true)
}
