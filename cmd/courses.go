package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/spigell/hh-matcher/internal/courses"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Recommend courses for a list of skills",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("output")
		if err := validateOutput(format); err != nil {
			return err
		}

		raw, _ := cmd.Flags().GetString("skills")
		skills := courses.SplitSkills(raw)
		if len(skills) == 0 {
			return errors.New("--skills is required")
		}

		e, err := setup(context.Background())
		if err != nil {
			return err
		}
		defer e.close()

		topN, _ := cmd.Flags().GetInt("top-n")
		return printCourses(cmd.OutOrStdout(), format, e.service.RecommendCourses(skills, topN))
	},
}

func init() {
	rootCmd.AddCommand(coursesCmd)

	coursesCmd.Flags().StringP("skills", "s", "", "missing skills separated by ',' or ';'")
	coursesCmd.Flags().Int("top-n", 0, "number of courses (default is matching.courses-top-n)")
	coursesCmd.Flags().StringP("output", "o", OutputText, "output format: text or json")
}
