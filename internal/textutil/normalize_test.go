package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "resume: senior python dev", Normalize("  Résumé:\n\tSenior   PYTHON Dev "))
	assert.Equal(t, "", Normalize("   \n"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize(Normalize("Built APIs with C++, C#, Node.js and .NET. Also CI/CD pipelines..."))
	assert.Equal(t, []string{"built", "apis", "with", "c++", "c#", "node.js", "and", ".net", "also", "ci", "cd", "pipelines"}, tokens)
}

func TestTokenizeDropsPunctuationOnly(t *testing.T) {
	assert.Empty(t, Tokenize("... + # -- ."))
}

func TestContentTokens(t *testing.T) {
	got := ContentTokens([]string{"the", "a", "kubernetes", "x", "with", "terraform"})
	assert.Equal(t, []string{"kubernetes", "terraform"}, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "go", Truncate("go", 10))
	assert.Equal(t, "", Truncate("go", 0))
}
