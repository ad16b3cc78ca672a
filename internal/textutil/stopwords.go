package textutil

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has",
		"have", "in", "into", "is", "it", "its", "of", "on", "or", "our", "that",
		"the", "their", "this", "to", "was", "we", "were", "will", "with", "you",
		"your", "i", "my", "me", "us", "they", "them", "he", "she", "his", "her",
		"not", "but", "if", "so", "than", "then", "there", "these", "those",
		"all", "any", "can", "also", "such", "other", "who", "which", "what",
		"etc", "e.g", "i.e", "per", "via", "using", "used", "use", "work",
		"working", "experience", "years", "year",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether token carries no matching signal.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// ContentTokens drops stopwords and single-rune tokens.
func ContentTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) < 2 || IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
