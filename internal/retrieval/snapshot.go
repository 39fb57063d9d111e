package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"

	"shifa/internal/knowledge"
)

// snapshot is the persisted form of an index generation: the
// serialized vectors and the parallel mapping, tagged with the
// embedder identity so a provider change invalidates the cache.
type snapshot struct {
	Generation uint64
	Embedder   string
	Vectors    []byte
	Mapping    []knowledge.Entry
}

// saveSnapshot writes the state to the single snapshot row.
func (c *Coordinator) saveSnapshot(ctx context.Context, state *State) error {
	if c.db == nil {
		return nil
	}

	vectors, err := state.Index.Marshal()
	if err != nil {
		return err
	}
	mapping, err := json.Marshal(state.Mapping)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_snapshots (id, generation, embedder, vectors, mapping, built_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		state.Generation, c.embedder.Name(), vectors, string(mapping))
	return err
}

// loadSnapshot returns the persisted snapshot, or nil if none exists
// or it cannot be decoded.
func (c *Coordinator) loadSnapshot(ctx context.Context) *snapshot {
	if c.db == nil {
		return nil
	}

	var snap snapshot
	var mappingJSON string
	err := c.db.QueryRowContext(ctx,
		"SELECT generation, embedder, vectors, mapping FROM index_snapshots WHERE id = 1").
		Scan(&snap.Generation, &snap.Embedder, &snap.Vectors, &mappingJSON)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		log.Printf("[Retrieval] reading index snapshot failed: %v", err)
		return nil
	}
	if err := json.Unmarshal([]byte(mappingJSON), &snap.Mapping); err != nil {
		log.Printf("[Retrieval] decoding snapshot mapping failed: %v", err)
		return nil
	}
	return &snap
}

// clearSnapshot removes the persisted snapshot row.
func (c *Coordinator) clearSnapshot(ctx context.Context) {
	if c.db == nil {
		return
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM index_snapshots WHERE id = 1"); err != nil {
		log.Printf("[Retrieval] clearing index snapshot failed: %v", err)
	}
}
