// Package textutil holds the normalization and tokenization rules shared by
// skill extraction, embedding keys and lexical scoring.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, folds diacritics and collapses runs of whitespace
// into single spaces.
func Normalize(s string) string {
	// transform chains keep internal state, so one is built per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokenize splits normalized text on token boundaries. Letters, digits and
// the symbols '+', '#' and '.' stay inside tokens so that terms like "c++",
// "c#" and "node.js" survive; trailing dots are dropped.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !isTokenRune(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(f, ".")
		if f == "" || !hasAlnum(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Terms normalizes and tokenizes s in one step.
func Terms(s string) []string {
	return Tokenize(Normalize(s))
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.'
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
