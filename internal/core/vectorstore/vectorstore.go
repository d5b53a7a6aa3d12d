package vectorstore

import (
	"context"
	"fmt"
)

// Engine identifies a vector store implementation.
type Engine int

const (
	EngineMilvus Engine = iota
	EnginePgvector
)

func ParseEngine(s string) (Engine, error) {
	switch s {
	case "milvus":
		return EngineMilvus, nil
	case "pgvector":
		return EnginePgvector, nil
	}
	return 0, fmt.Errorf("unknown vector store engine %q", s)
}

// ChunkRecord is one chunk ready for persistence. Sequence is the explicit
// zero-based order of the chunk within its source document.
type ChunkRecord struct {
	Sequence int
	Text     string
	Dense    []float32
}

// SearchResult is one retrieval hit.
type SearchResult struct {
	ID         int64   `json:"id"`
	DocumentID int64   `json:"document_id"`
	Sequence   int     `json:"sequence"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Store persists chunk text and vectors for hybrid retrieval.
//
// There is no update-in-place: re-ingestion is DeleteByDocument followed by
// InsertChunks, which also makes queue redelivery idempotent.
type Store interface {
	// EnsureCollection creates the collection and its indexes; calling it
	// against an existing collection is a no-op.
	EnsureCollection(ctx context.Context) error

	// InsertChunks writes the chunks for one document in the given order
	// and returns the store-assigned identifiers, one per chunk.
	InsertChunks(ctx context.Context, documentID int64, chunks []ChunkRecord) ([]int64, error)

	// DeleteByDocument removes every chunk belonging to the document.
	DeleteByDocument(ctx context.Context, documentID int64) error

	// Search returns the topK chunks nearest to the query vector.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)

	Close() error
}
