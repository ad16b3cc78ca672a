// Package profile turns raw resume and job posting text into structured
// profiles: canonical skills, section-tagged spans and a keyword bag.
package profile

import (
	"maps"
	"slices"
)

// Kind tells which side of a match a profile describes.
type Kind string

const (
	KindResume Kind = "resume"
	KindJob    Kind = "job"
)

// Section names recognized by heading detection.
const (
	SectionSummary        = "summary"
	SectionExperience     = "experience"
	SectionSkills         = "skills"
	SectionEducation      = "education"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionRequirements   = "requirements"
)

// SkillMatch is one place where a skill was recognized in the text.
type SkillMatch struct {
	Skill   string  `json:"skill"`
	Surface string  `json:"surface"`
	Section string  `json:"section,omitempty"`
	Fuzzy   bool    `json:"fuzzy,omitempty"`
	Score   float64 `json:"score"`
}

// Profile is the structured form of one document. A Profile is never
// modified after it is built; re-parsing always produces a new one.
type Profile struct {
	Kind Kind
	// RawText is the input exactly as it was given.
	RawText string
	// Text is the normalized form used for embeddings and lexical scoring.
	Text     string
	Skills   SkillSet
	Sections map[string]string
	Keywords map[string]int
	Matches  []SkillMatch
}

// Section returns the normalized text of a section, if present.
func (p *Profile) Section(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	text, ok := p.Sections[name]
	return text, ok
}

// SectionNames returns the detected section names in sorted order.
func (p *Profile) SectionNames() []string {
	return slices.Sorted(maps.Keys(p.Sections))
}

// IsEmpty reports whether the profile carries no text.
func (p *Profile) IsEmpty() bool {
	return p == nil || p.Text == ""
}
