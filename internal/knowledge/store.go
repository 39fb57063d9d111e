// Package knowledge provides the durable store of knowledge-base
// entries. The store is the single source of truth for entry content;
// the retrieval index only ever holds vectors derived from it.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates a mutation or read targeting a nonexistent
// entry id.
var ErrNotFound = errors.New("knowledge: entry not found")

// Entry is a single knowledge-base document.
type Entry struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store persists knowledge entries in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add inserts a new entry and returns its id. Ids come from SQLite
// AUTOINCREMENT and are never reused after a delete.
func (s *Store) Add(ctx context.Context, title, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO knowledge_entries (title, content) VALUES (?, ?)", title, content)
	if err != nil {
		return 0, fmt.Errorf("knowledge: add entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("knowledge: add entry: %w", err)
	}
	return id, nil
}

// Get returns the entry with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content FROM knowledge_entries WHERE id = ?", id).
		Scan(&e.ID, &e.Title, &e.Content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: get entry %d: %w", id, err)
	}
	return &e, nil
}

// Update replaces the title and content of an existing entry. Returns
// ErrNotFound if the id does not exist; the store is untouched in that
// case.
func (s *Store) Update(ctx context.Context, id int64, title, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE knowledge_entries SET title = ?, content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		title, content, id)
	if err != nil {
		return fmt.Errorf("knowledge: update entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("knowledge: update entry %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry. Returns ErrNotFound if the id does not
// exist.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("knowledge: delete entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("knowledge: delete entry %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all entries ordered by ascending id. This ordering is
// stable absent mutation and is the canonical slot order for the
// retrieval index.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content FROM knowledge_entries ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("knowledge: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Title, &e.Content); err != nil {
			return nil, fmt.Errorf("knowledge: list entries: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_entries").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("knowledge: count entries: %w", err)
	}
	return n, nil
}
