// Package docsearch is the semantic document index behind the
// search_offices tool. Documents are split into short chunks, embedded,
// and stored in SQLite with their vectors; a search embeds the query and
// ranks every stored chunk by cosine similarity.
package docsearch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/tao-agent/internal/embeddings"
)

// Hit is one search result. Smaller Distance is more relevant.
type Hit struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Searcher is the search side of the index, as consumed by tools.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Hit, error)
}

// Chunk is a unit of text to index.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

// ErrNoEmbedder is returned by operations that need embeddings when the
// store was built without an embedder.
var ErrNoEmbedder = errors.New("document search requires an embedding client")

// Store persists chunks and their embeddings.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// Open opens (or creates) the SQLite index at path.
func Open(path string, embedder embeddings.Embedder, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := NewStore(db, embedder, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a store on an existing connection, running
// migrations on first use.
func NewStore(db *sql.DB, embedder embeddings.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, embedder: embedder, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding BLOB,
			created_at TEXT NOT NULL,
			UNIQUE(source, chunk_index)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Replace swaps every chunk stored for source with chunks. All chunks
// are embedded before the database is touched, so a failed embedding
// leaves the previous version in place.
func (s *Store) Replace(ctx context.Context, source string, chunks []Chunk) (int, error) {
	if s.embedder == nil {
		return 0, ErrNoEmbedder
	}

	vectors := make([][]byte, len(chunks))
	for i, c := range chunks {
		v, err := s.embedder.Generate(ctx, c.Content)
		if err != nil {
			return 0, fmt.Errorf("embed %s chunk %d: %w", source, i, err)
		}
		vectors[i] = embeddings.Encode(v)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("delete %s: %w", source, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, c := range chunks {
		meta := map[string]any{"path": source, "chunk_index": i}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}

		id, _ := uuid.NewV7()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, source, chunk_index, content, metadata, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.String(), source, i, c.Content, string(metaJSON), vectors[i], now); err != nil {
			return 0, fmt.Errorf("insert %s chunk %d: %w", source, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("indexed document", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// DeleteSource removes every chunk stored for source.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source)
	return err
}

// Sources returns every indexed source, sorted.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM documents ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Search embeds query and returns the topK closest chunks, nearest
// first. Distance is 1 minus cosine similarity.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	qv, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, embedding FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY source, chunk_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	var vectors [][]float32
	for rows.Next() {
		var h Hit
		var metaJSON string
		var blob []byte
		if err := rows.Scan(&h.ID, &h.Document, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &h.Metadata); err != nil {
			h.Metadata = map[string]any{}
		}
		hits = append(hits, h)
		vectors = append(vectors, embeddings.Decode(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranked := embeddings.TopK(qv, vectors, topK)
	out := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		h := hits[r.Index]
		h.Distance = 1 - float64(r.Score)
		out = append(out, h)
	}

	s.logger.Debug("document search", "query", query, "candidates", len(hits), "returned", len(out))
	return out, nil
}
