package profile

import (
	"strings"

	"github.com/spigell/hh-matcher/internal/textutil"
)

var headings = map[string]string{
	"summary":                  SectionSummary,
	"profile":                  SectionSummary,
	"objective":                SectionSummary,
	"about me":                 SectionSummary,
	"professional summary":     SectionSummary,
	"experience":               SectionExperience,
	"work experience":          SectionExperience,
	"professional experience":  SectionExperience,
	"employment history":       SectionExperience,
	"work history":             SectionExperience,
	"responsibilities":         SectionExperience,
	"skills":                   SectionSkills,
	"technical skills":         SectionSkills,
	"core competencies":        SectionSkills,
	"technologies":             SectionSkills,
	"tech stack":               SectionSkills,
	"education":                SectionEducation,
	"academic background":      SectionEducation,
	"projects":                 SectionProjects,
	"personal projects":        SectionProjects,
	"certifications":           SectionCertifications,
	"certificates":             SectionCertifications,
	"requirements":             SectionRequirements,
	"qualifications":           SectionRequirements,
	"what we are looking for":  SectionRequirements,
	"must have":                SectionRequirements,
	"nice to have":             SectionRequirements,
}

const maxHeadingWords = 5

// span is a run of lines belonging to one section ("" before the first heading).
type span struct {
	section string
	text    string
}

// segment splits raw text into sections by heading detection. A heading is a
// short line that, stripped of markdown markers and a trailing colon, names a
// known section. Text on the same line after "Skills:" belongs to the section.
func segment(raw string) []span {
	var (
		spans   []span
		current string
		buf     []string
	)

	flush := func() {
		text := textutil.Normalize(strings.Join(buf, "\n"))
		if text != "" {
			spans = append(spans, span{section: current, text: text})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		if name, rest, ok := detectHeading(line); ok {
			flush()
			current = name
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return spans
}

func detectHeading(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#*=- \t")
	trimmed = strings.TrimRight(trimmed, "*=- \t")
	if trimmed == "" {
		return "", "", false
	}

	head, rest := trimmed, ""
	if i := strings.Index(trimmed, ":"); i >= 0 {
		head, rest = trimmed[:i], strings.TrimSpace(trimmed[i+1:])
	}

	head = textutil.Normalize(head)
	if head == "" || len(strings.Fields(head)) > maxHeadingWords {
		return "", "", false
	}

	name, ok := headings[head]
	if !ok {
		return "", "", false
	}
	return name, rest, true
}
