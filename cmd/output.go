package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"

	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/ranker"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case OutputText, OutputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (want %s or %s)", format, OutputText, OutputJSON)
	}
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

// printResults writes results; jobs switches the id column to job ids.
func printResults(w io.Writer, format string, results []matching.MatchResult, jobs bool) error {
	if format == OutputJSON {
		return printJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "CANDIDATE"
	if jobs {
		header = "JOB"
	}
	fmt.Fprintf(tw, "#\t%s\tFINAL\tCOVERAGE\tSEMANTIC\tMISSING\tFEEDBACK\n", header)

	for i, r := range results {
		id := r.CandidateID
		if jobs {
			id = r.JobID
		}
		feedback := r.Feedback
		if r.AIFeedback != "" {
			feedback = r.AIFeedback
		}
		if len(r.Degraded) > 0 {
			feedback += " (degraded: " + degradedList(r.Degraded) + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%.3f\t%s\t%s\n",
			i+1, id, r.Final, r.Coverage, r.Semantic, strings.Join(r.MissingSkills, ", "), feedback)
	}

	return tw.Flush()
}

func degradedList(d []matching.Degradation) string {
	names := make([]string, len(d))
	for i, n := range d {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}

func printGap(w io.Writer, format string, report ranker.GapReport, recs []courses.Recommendation) error {
	if format == OutputJSON {
		return printJSON(w, struct {
			ranker.GapReport
			Courses []courses.Recommendation `json:"courses"`
		}{report, recs})
	}

	fmt.Fprintf(w, "job %s / candidate %s: coverage %.0f%%\n", report.JobID, report.CandidateID, report.Coverage*100)
	if len(report.Ranked) == 0 {
		fmt.Fprintln(w, "no missing skills")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKILL\tIMPORTANCE")
	for _, g := range report.Ranked {
		fmt.Fprintf(tw, "%s\t%.2f\n", g.Skill, g.Importance)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	return printCourses(w, OutputText, recs)
}

func printCourses(w io.Writer, format string, recs []courses.Recommendation) error {
	if format == OutputJSON {
		return printJSON(w, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "no courses found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKILL\tCOURSE\tURL\tCOVERS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Skill, r.CourseTitle, r.CourseURL, strings.Join(r.Covers, ", "))
	}
	return tw.Flush()
}

// pickJob returns the job with id, or asks for one when id is empty.
func pickJob(jobs catalog.Jobs, id string) (catalog.Job, error) {
	if len(jobs) == 0 {
		return catalog.Job{}, fmt.Errorf("no jobs loaded")
	}

	if id != "" {
		job, ok := jobs.FindByID(id)
		if !ok {
			return catalog.Job{}, fmt.Errorf("there is no such job id %s", id)
		}
		return job, nil
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: jobs.Titles(),
		Size:  10,
	}

	idx, _, err := jobPrompt.Run()
	if err != nil {
		return catalog.Job{}, err
	}
	return jobs[idx], nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
