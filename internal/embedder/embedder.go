// Package embedder converts text into fixed-dimension vectors for
// similarity search.
package embedder

import (
	"context"
	"errors"
)

// ErrTransient indicates a retryable embedding gateway failure
// (network error, timeout, rate limit, upstream 5xx). Callers should
// keep previously built index state and retry later.
var ErrTransient = errors.New("embedder: transient gateway failure")

// Embedder converts text to vectors.
type Embedder interface {
	// Embed converts texts to vectors (batched for efficiency).
	// The result has the same length and order as the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Name identifies the embedder.
	Name() string
}
