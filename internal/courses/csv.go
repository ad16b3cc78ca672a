package courses

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spigell/hh-matcher/internal/vocabulary"
)

// LoadCSV reads a catalog with a header row naming the title, url, skills and
// optional provider columns. Skills are separated by ';' or ','.
func LoadCSV(path string, vocab *vocabulary.Vocabulary) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open course catalog: %w", err)
	}
	defer f.Close()

	courses, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read course catalog %s: %w", path, err)
	}
	return New(courses, vocab), nil
}

// Read parses catalog rows from r.
func Read(r io.Reader) ([]Course, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

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
	for _, required := range []string{"title", "skills"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var courses []Course
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		course := Course{
			Title:    cell(row, "title"),
			URL:      cell(row, "url"),
			Provider: cell(row, "provider"),
			Skills:   SplitSkills(cell(row, "skills")),
		}
		if course.Title == "" || len(course.Skills) == 0 {
			continue
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// SplitSkills splits a skills cell on ';' and ','.
func SplitSkills(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' })
	skills := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			skills = append(skills, field)
		}
	}
	return skills
}
