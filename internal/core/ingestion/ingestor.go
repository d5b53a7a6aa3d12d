package ingestion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/core/chunker"
	"github.com/lexara-id/lexara/internal/core/extractor"
	"github.com/lexara-id/lexara/internal/core/queue"
	"github.com/lexara-id/lexara/internal/core/vectorstore"
	"github.com/lexara-id/lexara/internal/models"
)

// Ingestor drives a document through the pipeline: extract text, chunk it,
// embed the chunks and store them in the vector database. Re-running a task
// for the same document replaces its chunks rather than duplicating them.
type Ingestor struct {
	db        core.DbClient
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	embedder  core.EmbeddingProvider
	store     vectorstore.Store
	opts      chunker.Options
	batchSize int
}

func NewIngestor(
	db core.DbClient,
	ext extractor.Extractor,
	ch *chunker.Chunker,
	embedder core.EmbeddingProvider,
	store vectorstore.Store,
	opts chunker.Options,
	batchSize int,
) *Ingestor {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Ingestor{
		db:        db,
		extractor: ext,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		opts:      opts,
		batchSize: batchSize,
	}
}

// Handle processes one queued ingestion task. It is the queue.Handler wired
// into the broker.
func (in *Ingestor) Handle(ctx context.Context, task queue.Task) error {
	// Bad chunking parameters can never succeed, fail before touching the
	// document.
	if err := in.opts.Validate(); err != nil {
		return queue.MarkPermanent(in.fail(ctx, task.DocumentID, err))
	}

	doc, err := in.db.GetDocumentByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("load document %d: %w", task.DocumentID, err)
	}
	if doc == nil {
		// Deleted between upload and pickup; nothing to do.
		slog.Warn("skipping task for missing document", "document_id", task.DocumentID)
		return nil
	}

	content, err := in.taskContent(ctx, task)
	if err != nil {
		return in.fail(ctx, task.DocumentID, err)
	}

	chunks, err := in.process(ctx, doc, content)
	if err != nil {
		failErr := in.fail(ctx, task.DocumentID, err)
		if errors.Is(err, extractor.ErrUnreadable) {
			return queue.MarkPermanent(failErr)
		}
		return failErr
	}

	// Delete-then-insert keeps re-ingestion idempotent.
	if err := in.store.DeleteByDocument(ctx, doc.ID); err != nil {
		return in.fail(ctx, doc.ID, fmt.Errorf("clear previous chunks: %w", err))
	}
	if len(chunks) > 0 {
		if _, err := in.store.InsertChunks(ctx, doc.ID, chunks); err != nil {
			return in.fail(ctx, doc.ID, fmt.Errorf("store chunks: %w", err))
		}
	}

	if err := in.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusStored); err != nil {
		return err
	}
	if err := in.db.MarkDocumentIngested(ctx, doc.ID); err != nil {
		return err
	}
	slog.Info("document ingested", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

// taskContent returns the document bytes, preferring the inline payload and
// falling back to the database copy.
func (in *Ingestor) taskContent(ctx context.Context, task queue.Task) ([]byte, error) {
	if task.PayloadB64 != "" {
		data, err := base64.StdEncoding.DecodeString(task.PayloadB64)
		if err == nil {
			return data, nil
		}
		slog.Warn("task payload is not valid base64, falling back to database copy",
			"document_id", task.DocumentID, "error", err)
	}
	data, err := in.db.GetDocumentContent(ctx, task.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load content of document %d: %w", task.DocumentID, err)
	}
	return data, nil
}

func (in *Ingestor) process(ctx context.Context, doc *models.Document, content []byte) ([]vectorstore.ChunkRecord, error) {
	if err := in.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusExtracting); err != nil {
		return nil, err
	}
	text, err := in.extractor.ExtractText(ctx, content, doc.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract document %d: %w", doc.ID, err)
	}

	if err := in.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusChunking); err != nil {
		return nil, err
	}
	pieces, err := in.chunker.Chunk(ctx, text, in.opts)
	if err != nil {
		return nil, fmt.Errorf("chunk document %d: %w", doc.ID, err)
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	if err := in.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusEmbedding); err != nil {
		return nil, err
	}
	vectors, err := in.embedBatches(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed document %d: %w", doc.ID, err)
	}

	records := make([]vectorstore.ChunkRecord, len(pieces))
	for i, p := range pieces {
		records[i] = vectorstore.ChunkRecord{
			Sequence: i,
			Text:     p,
			Dense:    vectors[i],
		}
	}
	return records, nil
}

// embedBatches embeds the chunks in fixed-size batches, batches running
// concurrently. Results keep chunk order regardless of completion order.
func (in *Ingestor) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(texts); start += in.batchSize {
		start := start
		end := start + in.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := in.embedder.EmbedTexts(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
			}
			mu.Lock()
			copy(vectors[start:end], batch)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// fail records the failed status and returns the original error for the
// broker's retry accounting. The status write is best effort.
func (in *Ingestor) fail(ctx context.Context, documentID int64, err error) error {
	if stErr := in.db.UpdateDocumentStatus(ctx, documentID, models.StatusFailed); stErr != nil {
		slog.Error("failed to mark document failed", "document_id", documentID, "error", stErr)
	}
	return err
}
