// Package courses maps missing skills to learning resources from a static
// course catalog.
package courses

import (
	"cmp"
	"slices"
	"strings"

	"github.com/spigell/hh-matcher/internal/vocabulary"
)

type Course struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Provider string   `json:"provider,omitempty"`
	Skills   []string `json:"skills"`
}

func (c Course) key() string {
	return c.Title + "\x00" + c.URL
}

// Recommendation is one course suggested for a gap. Skill is the earliest
// missing skill the course teaches; Covers lists all of them in gap order.
type Recommendation struct {
	Skill       string   `json:"skill"`
	CourseTitle string   `json:"course_title"`
	CourseURL   string   `json:"course_url"`
	Provider    string   `json:"provider,omitempty"`
	Covers      []string `json:"covers"`
}

// Catalog indexes courses by the canonical skills they teach.
type Catalog struct {
	vocab   *vocabulary.Vocabulary
	courses []Course
	bySkill map[string][]int
}

// New builds a catalog. Course skills are canonicalized with vocab when it is
// not nil; courses sharing title and url are merged.
func New(courses []Course, vocab *vocabulary.Vocabulary) *Catalog {
	c := &Catalog{
		vocab:   vocab,
		bySkill: make(map[string][]int),
	}

	seen := make(map[string]int, len(courses))
	for _, course := range courses {
		course.Title = strings.TrimSpace(course.Title)
		course.URL = strings.TrimSpace(course.URL)
		if course.Title == "" {
			continue
		}
		skills := c.canonical(course.Skills)

		idx, ok := seen[course.key()]
		if !ok {
			idx = len(c.courses)
			seen[course.key()] = idx
			course.Skills = nil
			c.courses = append(c.courses, course)
		}

		for _, skill := range skills {
			if slices.Contains(c.courses[idx].Skills, skill) {
				continue
			}
			c.courses[idx].Skills = append(c.courses[idx].Skills, skill)
			c.bySkill[skill] = append(c.bySkill[skill], idx)
		}
	}
	return c
}

func (c *Catalog) canonical(skills []string) []string {
	if c.vocab != nil {
		return c.vocab.CanonicalizeAll(skills)
	}
	result := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill != "" && !slices.Contains(result, skill) {
			result = append(result, skill)
		}
	}
	return result
}

// Len returns the number of distinct courses.
func (c *Catalog) Len() int {
	return len(c.courses)
}

// Courses returns a copy of the catalog contents.
func (c *Catalog) Courses() []Course {
	result := make([]Course, len(c.courses))
	for i, course := range c.courses {
		course.Skills = slices.Clone(course.Skills)
		result[i] = course
	}
	return result
}

// Recommend returns courses teaching the missing skills. Each course appears
// once, ordered by how many missing skills it covers, then by the position of
// the first skill it covers in missing, then by title. topN <= 0 returns all.
func (c *Catalog) Recommend(missing []string, topN int) []Recommendation {
	missing = c.canonical(missing)

	type candidate struct {
		rec   Recommendation
		first int
	}
	var (
		found []*candidate
		byIdx = make(map[int]*candidate)
	)

	for pos, skill := range missing {
		for _, idx := range c.bySkill[skill] {
			if existing, ok := byIdx[idx]; ok {
				existing.rec.Covers = append(existing.rec.Covers, skill)
				continue
			}
			course := c.courses[idx]
			entry := &candidate{
				rec: Recommendation{
					Skill:       skill,
					CourseTitle: course.Title,
					CourseURL:   course.URL,
					Provider:    course.Provider,
					Covers:      []string{skill},
				},
				first: pos,
			}
			byIdx[idx] = entry
			found = append(found, entry)
		}
	}

	slices.SortStableFunc(found, func(a, b *candidate) int {
		return cmp.Or(
			cmp.Compare(len(b.rec.Covers), len(a.rec.Covers)),
			cmp.Compare(a.first, b.first),
			strings.Compare(a.rec.CourseTitle, b.rec.CourseTitle),
		)
	})

	if topN > 0 && len(found) > topN {
		found = found[:topN]
	}

	result := make([]Recommendation, len(found))
	for i, entry := range found {
		result[i] = entry.rec
	}
	return result
}
