package matching

import (
	"fmt"
	"slices"

	"github.com/spigell/hh-matcher/internal/profile"
)

// Direction selects the denominator of the coverage ratio.
type Direction string

const (
	// DirectionJob measures how much of the job's skill list the candidate covers.
	DirectionJob Direction = "job"
	// DirectionCandidate measures how much of the candidate's skill list the job uses.
	DirectionCandidate Direction = "candidate"
)

// ParseDirection validates a direction name; empty means DirectionJob.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionJob:
		return DirectionJob, nil
	case DirectionCandidate:
		return DirectionCandidate, nil
	default:
		return "", fmt.Errorf("%w: unknown coverage direction %q", ErrConfiguration, s)
	}
}

// Coverage is |candidate ∩ job| divided by the size of the set chosen by
// direction. An empty denominator set gives 0.
func Coverage(candidate, job profile.SkillSet, direction Direction) float64 {
	denominator := job.Len()
	if direction == DirectionCandidate {
		denominator = candidate.Len()
	}
	if denominator == 0 {
		return 0
	}
	return float64(candidate.IntersectionLen(job)) / float64(denominator)
}

// Gap returns the job skills the candidate lacks, in the job's order.
func Gap(candidate, job profile.SkillSet) []string {
	return job.Difference(candidate)
}

// GapSkill is one missing skill with its relative importance for the job.
type GapSkill struct {
	Skill      string  `json:"skill"`
	Importance float64 `json:"importance"`
	Mentions   int     `json:"mentions"`
}

const (
	positionWeight = 0.7
	mentionWeight  = 0.3
)

// RankGap orders the missing skills by importance. Importance mixes the
// skill's position in the job list (first skill 1.0) with how often the job
// text mentions it relative to the most mentioned missing skill.
func RankGap(candidate, job *profile.Profile) []GapSkill {
	skills := job.Skills.Slice()
	n := len(skills)
	if n == 0 {
		return nil
	}

	mentions := make(map[string]int, n)
	for _, m := range job.Matches {
		mentions[m.Skill]++
	}

	missing := make([]GapSkill, 0, n)
	maxMentions := 0
	for i, skill := range skills {
		if candidate.Skills.Has(skill) {
			continue
		}
		missing = append(missing, GapSkill{
			Skill:      skill,
			Importance: 1 - float64(i)/float64(n),
			Mentions:   mentions[skill],
		})
		maxMentions = max(maxMentions, mentions[skill])
	}

	for i := range missing {
		share := 0.0
		if maxMentions > 0 {
			share = float64(missing[i].Mentions) / float64(maxMentions)
		}
		missing[i].Importance = clamp01(positionWeight*missing[i].Importance + mentionWeight*share)
	}

	slices.SortStableFunc(missing, func(a, b GapSkill) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		}
		return 0
	})
	return missing
}
