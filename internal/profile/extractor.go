package profile

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/spigell/hh-matcher/internal/textutil"
	"github.com/spigell/hh-matcher/internal/vocabulary"
)

const (
	// DefaultFuzzyThreshold is the minimum normalized edit-distance similarity
	// for a near-miss to count as a skill.
	DefaultFuzzyThreshold = 0.85
	// MinFuzzyRunes keeps short tokens out of the fuzzy pass; "java"/"jira"
	// style collisions are too likely below it.
	MinFuzzyRunes = 5
	// maxFuzzyWords bounds the n-gram size tried by the fuzzy pass.
	maxFuzzyWords = 2
)

// Extractor builds profiles against a fixed vocabulary. It is stateless
// after construction and safe for concurrent use.
type Extractor struct {
	vocab          *vocabulary.Vocabulary
	fuzzyThreshold float64
	fuzzyTerms     []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFuzzyThreshold sets the fuzzy-match similarity threshold. A value of
// 1 or more disables the fuzzy pass.
func WithFuzzyThreshold(threshold float64) Option {
	return func(e *Extractor) {
		e.fuzzyThreshold = threshold
	}
}

// NewExtractor returns an extractor over vocab.
func NewExtractor(vocab *vocabulary.Vocabulary, opts ...Option) *Extractor {
	e := &Extractor{vocab: vocab, fuzzyThreshold: DefaultFuzzyThreshold}
	for _, opt := range opts {
		opt(e)
	}

	for _, term := range vocab.Terms() {
		if len([]rune(term)) >= MinFuzzyRunes {
			e.fuzzyTerms = append(e.fuzzyTerms, term)
		}
	}
	return e
}

// Vocabulary returns the vocabulary the extractor matches against.
func (e *Extractor) Vocabulary() *vocabulary.Vocabulary {
	return e.vocab
}

// Extract parses text into a Profile. Empty or blank input yields a profile
// with no skills; extraction never fails.
func (e *Extractor) Extract(text string, kind Kind) *Profile {
	p := e.base(text, kind)
	if p.Text == "" {
		return p
	}

	var skills []string
	for _, sp := range segment(text) {
		matches := e.scan(textutil.Tokenize(sp.text), sp.section)
		for _, m := range matches {
			skills = append(skills, m.Skill)
		}
		p.Matches = append(p.Matches, matches...)
	}
	p.Skills = NewSkillSet(skills...)

	return p
}

// FromSkills builds a profile whose skills come from an external parser.
// Skills are canonicalized through the vocabulary; sections and keywords are
// still derived from the text.
func (e *Extractor) FromSkills(text string, kind Kind, skills []string) *Profile {
	p := e.base(text, kind)
	p.Skills = NewSkillSet(e.vocab.CanonicalizeAll(skills)...)
	for _, skill := range p.Skills.Slice() {
		p.Matches = append(p.Matches, SkillMatch{Skill: skill, Surface: skill, Score: 1})
	}
	return p
}

// WithDeclared returns a new profile equal to p whose skills also include
// the declared ones. Declared skills come first, keeping the declared order.
func (e *Extractor) WithDeclared(p *Profile, declared []string) *Profile {
	if len(declared) == 0 {
		return p
	}
	out := *p
	out.Skills = NewSkillSet(e.vocab.CanonicalizeAll(declared)...).Union(p.Skills)
	out.Matches = append([]SkillMatch(nil), p.Matches...)
	return &out
}

func (e *Extractor) base(text string, kind Kind) *Profile {
	p := &Profile{
		Kind:     kind,
		RawText:  text,
		Text:     textutil.Normalize(text),
		Sections: make(map[string]string),
		Keywords: make(map[string]int),
		Skills:   NewSkillSet(),
	}
	if p.Text == "" {
		return p
	}

	for _, sp := range segment(text) {
		if sp.section == "" {
			continue
		}
		if prev, ok := p.Sections[sp.section]; ok {
			p.Sections[sp.section] = prev + " " + sp.text
			continue
		}
		p.Sections[sp.section] = sp.text
	}

	for _, token := range textutil.ContentTokens(textutil.Tokenize(p.Text)) {
		p.Keywords[token]++
	}

	return p
}

// scan runs the exact pass (longest phrase first on token boundaries) and
// then the fuzzy pass over the tokens the exact pass left unclaimed.
func (e *Extractor) scan(tokens []string, section string) []SkillMatch {
	var matches []SkillMatch
	claimed := make([]bool, len(tokens))

	maxLen := e.vocab.MaxPhraseLen()
	for i := 0; i < len(tokens); {
		n := e.longestMatch(tokens, i, maxLen)
		if n == 0 {
			i++
			continue
		}
		phrase := strings.Join(tokens[i:i+n], " ")
		skill, _ := e.vocab.Lookup(phrase)
		matches = append(matches, SkillMatch{Skill: skill, Surface: phrase, Section: section, Score: 1})
		for j := i; j < i+n; j++ {
			claimed[j] = true
		}
		i += n
	}

	if e.fuzzyThreshold >= 1 || len(e.fuzzyTerms) == 0 {
		return matches
	}

	for i := range tokens {
		for n := maxFuzzyWords; n >= 1; n-- {
			if i+n > len(tokens) || anyClaimed(claimed[i:i+n]) {
				continue
			}
			phrase := strings.Join(tokens[i:i+n], " ")
			if len([]rune(phrase)) < MinFuzzyRunes || textutil.IsStopword(phrase) {
				continue
			}
			term, score := e.closest(phrase)
			if term == "" {
				continue
			}
			skill, _ := e.vocab.Lookup(term)
			matches = append(matches, SkillMatch{Skill: skill, Surface: phrase, Section: section, Fuzzy: true, Score: score})
			for j := i; j < i+n; j++ {
				claimed[j] = true
			}
			break
		}
	}

	return matches
}

func (e *Extractor) longestMatch(tokens []string, start, maxLen int) int {
	for n := min(maxLen, len(tokens)-start); n >= 1; n-- {
		if _, ok := e.vocab.Lookup(strings.Join(tokens[start:start+n], " ")); ok {
			return n
		}
	}
	return 0
}

// closest returns the vocabulary term most similar to phrase when the
// similarity reaches the threshold. Ties resolve to the lexicographically
// first term because fuzzyTerms is sorted.
func (e *Extractor) closest(phrase string) (string, float64) {
	best, bestScore := "", 0.0
	plen := len([]rune(phrase))
	for _, term := range e.fuzzyTerms {
		tlen := len([]rune(term))
		longest := max(plen, tlen)
		// the length gap alone already bounds the best possible similarity
		if 1-float64(abs(plen-tlen))/float64(longest) < e.fuzzyThreshold {
			continue
		}
		score := Similarity(phrase, term)
		if score > bestScore {
			best, bestScore = term, score
		}
	}
	if bestScore < e.fuzzyThreshold {
		return "", 0
	}
	return best, bestScore
}

// Similarity is 1 minus the Levenshtein distance normalized by the longer
// string's rune length.
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func anyClaimed(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
