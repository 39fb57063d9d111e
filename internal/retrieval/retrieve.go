package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of nearest entries retrieved when the
// caller does not specify one.
const DefaultTopK = 3

// Retrieve embeds the query and returns the newline-joined content of
// the topK nearest entries, in ascending-distance order. An absent or
// empty index yields an empty string, never an error: callers must
// treat empty context as "no retrieval available". topK <= 0 uses
// DefaultTopK; values beyond the corpus size are clamped by the index.
func (c *Coordinator) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	state := c.Current()
	if state == nil || state.Index.Len() == 0 {
		return "", nil
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("retrieval: got %d vectors for query", len(vectors))
	}

	results, err := state.Index.Search(vectors[0], topK)
	if err != nil {
		return "", fmt.Errorf("retrieval: search: %w", err)
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = state.Mapping[r.Slot].Content
	}
	return strings.Join(contents, "\n"), nil
}
