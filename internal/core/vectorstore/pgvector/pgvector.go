package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/lexara-id/lexara/internal/core/vectorstore"
)

// Store keeps chunk vectors in the document_chunks table next to the rest of
// the relational data. The table and the vector extension are created by the
// database bootstrap script, so EnsureCollection only verifies reachability.
type Store struct {
	db        *sql.DB
	dimension int
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore(db *sql.DB, dimension int) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector store requires a database handle")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &Store{db: db, dimension: dimension}, nil
}

// Close is a no-op: the handle is owned by the database client.
func (s *Store) Close() error { return nil }

func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertChunks writes all chunks of a document in one transaction so a
// partially ingested document never becomes visible.
func (s *Store) InsertChunks(ctx context.Context, documentID int64, chunks []vectorstore.ChunkRecord) ([]int64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chunk insert: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO document_chunks (document_id, sequence, chunk_text, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	ids := make([]int64, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Dense) != s.dimension {
			return nil, fmt.Errorf("chunk %d: dense vector has dim %d, expected %d", ch.Sequence, len(ch.Dense), s.dimension)
		}
		var id int64
		err := tx.QueryRowContext(ctx, q,
			documentID, ch.Sequence, ch.Text, pgvector.NewVector(ch.Dense),
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d of document %d: %w", ch.Sequence, documentID, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chunk insert: %w", err)
	}
	return ids, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks of document %d: %w", documentID, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	const q = `
		SELECT id, document_id, sequence, chunk_text, 1 - (embedding <=> $1) AS score
		FROM document_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.SearchResult
	for rows.Next() {
		var r vectorstore.SearchResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Sequence, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
