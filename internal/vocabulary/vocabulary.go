// Package vocabulary holds the canonical skill terms and their aliases used by
// skill extraction, course catalogs and skill-set normalization.
package vocabulary

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/spigell/hh-matcher/internal/textutil"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Entry is one canonical skill with the surface forms that map to it.
// Ambiguous marks a name that is also an ordinary word ("go", "rest"): it
// still canonicalizes declared skills but only its aliases are matched in
// free text.
type Entry struct {
	Name      string   `mapstructure:"name"`
	Aliases   []string `mapstructure:"aliases"`
	Ambiguous bool     `mapstructure:"ambiguous"`
}

// Vocabulary maps normalized phrases to canonical skill identifiers.
// It is read-only after construction and safe for concurrent use.
type Vocabulary struct {
	canonical []string
	terms     map[string]string
	ambiguous map[string]struct{}
	maxPhrase int
}

// New builds a vocabulary from entries. Canonical names and aliases are
// normalized; an alias claimed by two different skills is an error.
func New(entries []Entry) (*Vocabulary, error) {
	v := &Vocabulary{
		terms:     make(map[string]string),
		ambiguous: make(map[string]struct{}),
	}

	for _, e := range entries {
		name := phraseOf(e.Name)
		if name == "" {
			continue
		}
		if owner, ok := v.terms[name]; ok && owner != name {
			return nil, fmt.Errorf("skill %q is already an alias of %q", name, owner)
		}
		if _, ok := v.terms[name]; !ok {
			v.canonical = append(v.canonical, name)
		}
		v.add(name, name)
		if e.Ambiguous {
			v.ambiguous[name] = struct{}{}
		}

		for _, alias := range e.Aliases {
			alias = phraseOf(alias)
			if alias == "" {
				continue
			}
			if owner, ok := v.terms[alias]; ok && owner != name {
				return nil, fmt.Errorf("alias %q of %q is already mapped to %q", alias, name, owner)
			}
			v.add(alias, name)
		}
	}

	return v, nil
}

func (v *Vocabulary) add(phrase, canonical string) {
	v.terms[phrase] = canonical
	if n := strings.Count(phrase, " ") + 1; n > v.maxPhrase {
		v.maxPhrase = n
	}
}

// phraseOf reduces a term to its tokenized, space-joined form.
func phraseOf(term string) string {
	return strings.Join(textutil.Terms(term), " ")
}

// Default returns the built-in vocabulary.
func Default() (*Vocabulary, error) {
	r := viper.New()
	r.SetConfigType("yaml")
	if err := r.ReadConfig(bytes.NewReader(defaultVocabulary)); err != nil {
		return nil, fmt.Errorf("read built-in vocabulary: %w", err)
	}
	return fromViper(r)
}

// Load reads a vocabulary file. Any format viper understands (yaml, json,
// toml) is accepted; the file must carry a top-level "skills" list.
func Load(path string) (*Vocabulary, error) {
	r := viper.New()
	r.SetConfigFile(path)
	if err := r.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read vocabulary %q: %w", path, err)
	}
	return fromViper(r)
}

func fromViper(r *viper.Viper) (*Vocabulary, error) {
	var entries []Entry
	if err := r.UnmarshalKey("skills", &entries); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("vocabulary has no skills")
	}
	return New(entries)
}

// Canonicalize maps a surface form to its canonical skill.
func (v *Vocabulary) Canonicalize(term string) (string, bool) {
	canonical, ok := v.terms[phraseOf(term)]
	return canonical, ok
}

// CanonicalizeAll maps terms to canonical skills in order, dropping
// duplicates. Unknown terms are kept in normalized form so declared skills
// outside the vocabulary still take part in set operations.
func (v *Vocabulary) CanonicalizeAll(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		skill, ok := v.Canonicalize(term)
		if !ok {
			skill = phraseOf(term)
		}
		if skill == "" {
			continue
		}
		if _, dup := seen[skill]; dup {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// Lookup returns the canonical skill for an already tokenized phrase found
// in free text. Ambiguous names are not matched.
func (v *Vocabulary) Lookup(phrase string) (string, bool) {
	if _, skip := v.ambiguous[phrase]; skip {
		return "", false
	}
	canonical, ok := v.terms[phrase]
	return canonical, ok
}

// Terms returns every phrase Lookup matches, in sorted order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, 0, len(v.terms))
	for term := range v.terms {
		if _, skip := v.ambiguous[term]; skip {
			continue
		}
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Skills returns the canonical skills in declaration order.
func (v *Vocabulary) Skills() []string {
	return append([]string(nil), v.canonical...)
}

// MaxPhraseLen is the longest known phrase measured in tokens.
func (v *Vocabulary) MaxPhraseLen() int {
	return v.maxPhrase
}

// Len returns the number of canonical skills.
func (v *Vocabulary) Len() int {
	return len(v.canonical)
}
