package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Compile-time interface check.
var _ Embedder = (*Hashing)(nil)

// Hashing is a deterministic feature-hashing embedder. Each token is
// hashed into a fixed number of buckets and the resulting counts are
// L2-normalized. A given text always produces the same vector, which
// makes it suitable for offline use and tests; it needs no training
// and no network access.
type Hashing struct {
	dims int
}

// NewHashing creates a feature-hashing embedder with the given number
// of dimensions (buckets). dims <= 0 defaults to 512.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 512
	}
	return &Hashing{dims: dims}
}

// Embed converts texts to hashed bag-of-words vectors.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.dims)
		for _, word := range tokenize(text) {
			hasher := fnv.New32a()
			hasher.Write([]byte(word))
			vec[hasher.Sum32()%uint32(h.dims)]++
		}

		// Normalize
		var norm float32
		for _, v := range vec {
			norm += v * v
		}
		if norm > 0 {
			norm = float32(math.Sqrt(float64(norm)))
			for j := range vec {
				vec[j] /= norm
			}
		}

		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the number of hash buckets.
func (h *Hashing) Dimensions() int { return h.dims }

// Name returns the embedder name.
func (h *Hashing) Name() string { return "hashing" }

// tokenize splits text into lowercase words.
func tokenize(text string) []string {
	var words []string
	var word strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}

	return words
}
