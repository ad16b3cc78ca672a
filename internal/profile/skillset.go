package profile

// SkillSet is a set of canonical skill identifiers. Membership is what
// matters for set operations; the insertion order is remembered so results
// derived from a set (missing skills, listings) are deterministic.
type SkillSet struct {
	order []string
	index map[string]struct{}
}

// NewSkillSet builds a set from skills that are already canonical, dropping
// empty strings and duplicates.
func NewSkillSet(skills ...string) SkillSet {
	s := SkillSet{index: make(map[string]struct{}, len(skills))}
	for _, skill := range skills {
		if skill == "" {
			continue
		}
		if _, ok := s.index[skill]; ok {
			continue
		}
		s.index[skill] = struct{}{}
		s.order = append(s.order, skill)
	}
	return s
}

// Len returns the number of skills in the set.
func (s SkillSet) Len() int { return len(s.order) }

// Has reports whether skill is in the set.
func (s SkillSet) Has(skill string) bool {
	_, ok := s.index[skill]
	return ok
}

// Slice returns the skills in insertion order.
func (s SkillSet) Slice() []string {
	return append([]string(nil), s.order...)
}

// IntersectionLen counts the skills present in both sets.
func (s SkillSet) IntersectionLen(other SkillSet) int {
	small, large := s, other
	if large.Len() < small.Len() {
		small, large = large, small
	}
	n := 0
	for _, skill := range small.order {
		if large.Has(skill) {
			n++
		}
	}
	return n
}

// Difference returns the skills of s missing from other, in s's order.
func (s SkillSet) Difference(other SkillSet) []string {
	out := make([]string, 0, len(s.order))
	for _, skill := range s.order {
		if !other.Has(skill) {
			out = append(out, skill)
		}
	}
	return out
}

// Union returns a new set with the skills of s followed by the new skills of other.
func (s SkillSet) Union(other SkillSet) SkillSet {
	return NewSkillSet(append(s.Slice(), other.order...)...)
}

// SubsetOf reports whether every skill of s is in other.
func (s SkillSet) SubsetOf(other SkillSet) bool {
	return s.IntersectionLen(other) == s.Len()
}
