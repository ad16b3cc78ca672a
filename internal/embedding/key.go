// Package embedding holds the process-wide embedding cache together with the
// embedder capability and the registry of known embedding models.
package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/spigell/hh-matcher/internal/textutil"
)

// Key addresses one embedding: the hash of the normalized text and the model
// identifier. Texts that differ only in case, accents or spacing share a key.
type Key string

// NewKey computes the cache key for text embedded with modelID.
func NewKey(text, modelID string) Key {
	h := sha256.New()
	h.Write([]byte(textutil.Normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// Entry is a computed embedding. Entries are never modified once stored;
// the cache hands out copies of Vector.
type Entry struct {
	Key        Key
	Model      string
	Vector     []float32
	ComputedAt time.Time
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
