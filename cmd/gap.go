package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/spigell/hh-matcher/internal/catalog"
)

var gapCmd = &cobra.Command{
	Use:   "gap",
	Short: "Show the skills a resume misses for a job, with courses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return gap(cmd)
	},
}

func init() {
	rootCmd.AddCommand(gapCmd)

	gapCmd.Flags().StringP("resume", "r", "", "resume file (.txt or .md)")
	gapCmd.Flags().String("job", "", "job id (asks interactively when unset)")
	gapCmd.Flags().Int("top-n", 0, "number of courses (default is matching.courses-top-n)")
	gapCmd.Flags().StringP("output", "o", OutputText, "output format: text or json")
}

func gap(cmd *cobra.Command) error {
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

	jobs, err := catalog.LoadJobsCSV(e.cfg.Data.Jobs)
	if err != nil {
		return err
	}

	jobID, _ := cmd.Flags().GetString("job")
	job, err := pickJob(jobs, jobID)
	if err != nil {
		return err
	}

	report := e.service.ComputeGap(ctx, candidate, job)
	topN, _ := cmd.Flags().GetInt("top-n")

	return printGap(cmd.OutOrStdout(), format, report, e.service.RecommendCourses(report.Missing, topN))
}
