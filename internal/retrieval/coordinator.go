// Package retrieval keeps the vector index a correct reflection of the
// knowledge store and answers context-retrieval queries against it.
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"shifa/internal/embedder"
	"shifa/internal/index"
	"shifa/internal/knowledge"
)

// State is one immutable generation of the retrieval index: the built
// vectors plus the parallel slot-to-entry mapping. Slot i of the index
// corresponds exactly to Mapping[i]. A new State is installed wholesale
// after every successful rebuild; readers holding an old State keep a
// consistent view.
type State struct {
	Index      *index.Flat
	Mapping    []knowledge.Entry
	Generation uint64
}

// Coordinator is the single authority over the retrieval index. All
// knowledge mutations go through it so that every successful mutation
// is followed by a synchronous full rebuild, and so that mutations and
// rebuilds serialize (single-writer discipline).
type Coordinator struct {
	store    *knowledge.Store
	embedder embedder.Embedder
	db       *sql.DB // snapshot persistence; nil disables it

	mu sync.Mutex // serializes mutations and rebuilds

	stateMu    sync.RWMutex
	state      *State // nil while the store is empty
	generation uint64
	rebuilds   uint64 // successful rebuild count
}

// NewCoordinator creates a coordinator over the given store and
// embedding gateway. db is used to cache index snapshots across
// restarts; pass nil to disable snapshot persistence.
func NewCoordinator(store *knowledge.Store, emb embedder.Embedder, db *sql.DB) *Coordinator {
	return &Coordinator{store: store, embedder: emb, db: db}
}

// Current returns the latest installed index state, or nil if the
// store is empty and no index has been built.
func (c *Coordinator) Current() *State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Rebuilds returns the number of successful rebuilds since startup.
func (c *Coordinator) Rebuilds() uint64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.rebuilds
}

// AddEntry inserts a new entry and synchronously rebuilds the index.
// The insert stands even if the rebuild fails; the previous index
// remains in effect until the next successful rebuild.
func (c *Coordinator) AddEntry(ctx context.Context, title, content string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.store.Add(ctx, title, content)
	if err != nil {
		return 0, err
	}
	c.rebuildAfterMutation(ctx)
	return id, nil
}

// UpdateEntry replaces an entry's title and content and synchronously
// rebuilds the index. A NotFound failure leaves both the store and the
// index untouched.
func (c *Coordinator) UpdateEntry(ctx context.Context, id int64, title, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Update(ctx, id, title, content); err != nil {
		return err
	}
	c.rebuildAfterMutation(ctx)
	return nil
}

// DeleteEntry removes an entry and synchronously rebuilds the index.
func (c *Coordinator) DeleteEntry(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.rebuildAfterMutation(ctx)
	return nil
}

// rebuildAfterMutation runs a rebuild for an already-acknowledged
// mutation. Failures leave the previous index in effect (stale but
// valid) and are logged rather than propagated; the next successful
// rebuild reconciles store and index. Caller must hold c.mu.
func (c *Coordinator) rebuildAfterMutation(ctx context.Context) {
	if err := c.rebuildLocked(ctx); err != nil {
		log.Printf("[Retrieval] rebuild after mutation failed, index is stale: %v", err)
	}
}

// Rebuild regenerates the index from the current store contents.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(ctx)
}

// rebuildLocked reads one consistent store listing, embeds the entry
// contents in that exact order and installs a fresh index state.
// Caller must hold c.mu.
func (c *Coordinator) rebuildLocked(ctx context.Context) error {
	entries, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("retrieval: rebuild: %w", err)
	}

	if len(entries) == 0 {
		c.stateMu.Lock()
		c.state = nil
		c.rebuilds++
		c.stateMu.Unlock()
		c.clearSnapshot(ctx)
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Content
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("retrieval: rebuild: embed corpus: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("retrieval: rebuild: got %d vectors for %d entries", len(vectors), len(entries))
	}

	idx := index.NewFlat()
	if err := idx.Build(vectors); err != nil {
		return fmt.Errorf("retrieval: rebuild: %w", err)
	}

	c.stateMu.Lock()
	c.generation++
	state := &State{Index: idx, Mapping: entries, Generation: c.generation}
	c.state = state
	c.rebuilds++
	c.stateMu.Unlock()

	if err := c.saveSnapshot(ctx, state); err != nil {
		// Snapshot is a cache; losing it only costs a re-embed on the
		// next cold start.
		log.Printf("[Retrieval] persisting index snapshot failed: %v", err)
	}

	log.Printf("[Retrieval] rebuilt index: %d entries, %d dims, generation %d",
		len(entries), idx.Dimensions(), state.Generation)
	return nil
}

// Warm prepares the index at process start. An empty store leaves the
// index unset. Otherwise a persisted snapshot is reused when it still
// matches the store exactly; on any disagreement the store wins and a
// fresh rebuild runs.
func (c *Coordinator) Warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("retrieval: warm: %w", err)
	}
	if len(entries) == 0 {
		log.Printf("[Retrieval] knowledge store empty, index left unset")
		return nil
	}

	if snap := c.loadSnapshot(ctx); snap != nil &&
		snap.Embedder == c.embedder.Name() && mappingEqual(snap.Mapping, entries) {
		idx := index.NewFlat()
		if err := idx.Unmarshal(snap.Vectors); err == nil && idx.Len() == len(entries) {
			c.stateMu.Lock()
			c.generation = snap.Generation
			c.state = &State{Index: idx, Mapping: entries, Generation: snap.Generation}
			c.stateMu.Unlock()
			log.Printf("[Retrieval] warm start from snapshot: %d entries, generation %d",
				len(entries), snap.Generation)
			return nil
		}
		log.Printf("[Retrieval] snapshot payload unusable, rebuilding")
	}

	return c.rebuildLocked(ctx)
}

// mappingEqual reports whether a persisted mapping still matches the
// current store listing entry for entry.
func mappingEqual(a, b []knowledge.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
