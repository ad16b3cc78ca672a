// Package catalog loads the read-only job and resume records the ranker
// scores: job postings from CSV and plain-text resumes from a directory.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spigell/hh-matcher/internal/courses"
)

type Job struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	ApplyURL    string   `json:"apply_url,omitempty"`
}

// Text is the document scored for the job: title, description and the
// declared skills line.
func (j Job) Text() string {
	parts := make([]string, 0, 3)
	if title := strings.TrimSpace(j.Title); title != "" {
		parts = append(parts, title)
	}
	if description := strings.TrimSpace(j.Description); description != "" {
		parts = append(parts, description)
	}
	if len(j.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(j.Skills, ", "))
	}
	return strings.Join(parts, "\n\n")
}

type Candidate struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Text   string   `json:"text"`
	Skills []string `json:"skills,omitempty"`
}

type Jobs []Job

func (j Jobs) FindByID(id string) (Job, bool) {
	idx := slices.IndexFunc(j, func(job Job) bool { return job.ID == id })
	if idx < 0 {
		return Job{}, false
	}
	return j[idx], true
}

// Titles returns "id: title" labels in catalog order.
func (j Jobs) Titles() []string {
	titles := make([]string, len(j))
	for i, job := range j {
		titles[i] = fmt.Sprintf("%s: %s", job.ID, job.Title)
	}
	return titles
}

func LoadJobsCSV(path string) (Jobs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs: %w", err)
	}
	defer f.Close()

	jobs, err := ReadJobs(f)
	if err != nil {
		return nil, fmt.Errorf("read jobs %s: %w", path, err)
	}
	return jobs, nil
}

// ReadJobs parses job rows. The header must name a title column; id,
// description, skills, deadline and apply_url are optional. Rows without an
// id get their zero-based row position.
func ReadJobs(r io.Reader) (Jobs, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["title"]; !ok {
		return nil, errors.New(`missing "title" column`)
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		jobs Jobs
		ids  = make(map[string]struct{})
	)
	for position := 0; ; {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}

		job := Job{
			ID:          cell(row, "id"),
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			Skills:      courses.SplitSkills(cell(row, "skills")),
			Deadline:    cell(row, "deadline"),
			ApplyURL:    cell(row, "apply_url"),
		}
		if job.ID == "" {
			job.ID = strconv.Itoa(position)
		}
		position++

		if _, dup := ids[job.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		ids[job.ID] = struct{}{}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var resumeExtensions = []string{".txt", ".md"}

// LoadResumesDir reads every .txt and .md file in dir as one candidate whose
// id is the file name without extension. Candidates are sorted by id.
func LoadResumesDir(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read resumes dir: %w", err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !slices.Contains(resumeExtensions, ext) {
			continue
		}

		candidate, err := LoadResume(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}

	slices.SortFunc(candidates, func(a, b Candidate) int { return strings.Compare(a.ID, b.ID) })
	return candidates, nil
}

// LoadResume reads one plain-text resume.
func LoadResume(path string) (Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("read resume: %w", err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Candidate{ID: id, Name: id, Text: string(data)}, nil
}
