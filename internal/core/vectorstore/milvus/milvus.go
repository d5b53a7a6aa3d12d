package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexara-id/lexara/internal/core/vectorstore"
)

// Store is a minimal REST client to Milvus (v2 vectordb API). The collection
// holds an auto-assigned integer primary key, the source document reference,
// the analyzed chunk text, a fixed-dimension dense vector and a sparse
// lexical vector computed server-side from the text by a BM25 function.
type Store struct {
	baseURL    string
	token      string
	collection string
	dimension  int
	client     *http.Client
}

var _ vectorstore.Store = (*Store)(nil)

type Config struct {
	Addr       string
	Username   string
	Password   string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("milvus address not set")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("milvus collection not set")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	token := ""
	if cfg.Username != "" {
		token = cfg.Username + ":" + cfg.Password
	}
	return &Store{
		baseURL:    cfg.Addr,
		token:      token,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *Store) Close() error { return nil }

// EnsureCollection creates the collection, its BM25 function and both
// indexes. If the collection already exists nothing happens.
func (s *Store) EnsureCollection(ctx context.Context) error {
	var has struct {
		Has bool `json:"has"`
	}
	if err := s.post(ctx, "/v2/vectordb/collections/has",
		map[string]any{"collectionName": s.collection}, &has); err != nil {
		return err
	}
	if has.Has {
		return nil
	}

	body := map[string]any{
		"collectionName": s.collection,
		"schema": map[string]any{
			"autoId":             true,
			"enableDynamicField": false,
			"fields": []map[string]any{
				{
					"fieldName": "id",
					"dataType":  "Int64",
					"isPrimary": true,
				},
				{
					"fieldName": "source_document_id",
					"dataType":  "Int64",
				},
				{
					"fieldName": "sequence",
					"dataType":  "Int64",
				},
				{
					"fieldName": "text",
					"dataType":  "VarChar",
					"elementTypeParams": map[string]any{
						"max_length":      "65535",
						"enable_analyzer": true,
					},
				},
				{
					"fieldName": "dense_embedding",
					"dataType":  "FloatVector",
					"elementTypeParams": map[string]any{
						"dim": s.dimension,
					},
				},
				{
					"fieldName": "sparse_embedding",
					"dataType":  "SparseFloatVector",
				},
			},
			"functions": []map[string]any{
				{
					"name":             "text_to_bm25",
					"type":             "BM25",
					"inputFieldNames":  []string{"text"},
					"outputFieldNames": []string{"sparse_embedding"},
				},
			},
		},
		"indexParams": []map[string]any{
			{
				"fieldName":  "dense_embedding",
				"indexName":  "dense_embedding_idx",
				"metricType": "COSINE",
			},
			{
				"fieldName":  "sparse_embedding",
				"indexName":  "sparse_embedding_idx",
				"metricType": "BM25",
				"params": map[string]any{
					"index_type": "SPARSE_INVERTED_INDEX",
				},
			},
		},
	}
	if err := s.post(ctx, "/v2/vectordb/collections/create", body, nil); err != nil {
		return err
	}
	return s.post(ctx, "/v2/vectordb/collections/load",
		map[string]any{"collectionName": s.collection}, nil)
}

func (s *Store) InsertChunks(ctx context.Context, documentID int64, chunks []vectorstore.ChunkRecord) ([]int64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	rows := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		if len(ch.Dense) != s.dimension {
			return nil, fmt.Errorf("chunk %d: dense vector has dim %d, collection expects %d", ch.Sequence, len(ch.Dense), s.dimension)
		}
		rows[i] = map[string]any{
			"source_document_id": documentID,
			"sequence":           ch.Sequence,
			"text":               ch.Text,
			"dense_embedding":    ch.Dense,
		}
	}

	var res struct {
		InsertCount int     `json:"insertCount"`
		InsertIds   []int64 `json:"insertIds"`
	}
	err := s.post(ctx, "/v2/vectordb/entities/insert", map[string]any{
		"collectionName": s.collection,
		"data":           rows,
	}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.InsertIds) != len(chunks) {
		return nil, fmt.Errorf("insert returned %d ids for %d chunks", len(res.InsertIds), len(chunks))
	}
	return res.InsertIds, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID int64) error {
	return s.post(ctx, "/v2/vectordb/entities/delete", map[string]any{
		"collectionName": s.collection,
		"filter":         fmt.Sprintf("source_document_id == %d", documentID),
	}, nil)
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	var rows []struct {
		ID         int64   `json:"id"`
		DocumentID int64   `json:"source_document_id"`
		Sequence   int     `json:"sequence"`
		Text       string  `json:"text"`
		Distance   float64 `json:"distance"`
	}
	err := s.post(ctx, "/v2/vectordb/entities/search", map[string]any{
		"collectionName": s.collection,
		"data":           [][]float32{vector},
		"annsField":      "dense_embedding",
		"limit":          topK,
		"outputFields":   []string{"source_document_id", "sequence", "text"},
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, vectorstore.SearchResult{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Sequence:   r.Sequence,
			Text:       r.Text,
			Score:      r.Distance,
		})
	}
	return out, nil
}

// post sends one REST call and decodes the "data" payload into out. Milvus
// wraps every response in {code, message, data}; a non-zero code is an error
// even on HTTP 200.
func (s *Store) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("milvus POST %s failed: %s", path, resp.Status)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("milvus POST %s: decode response: %w", path, err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("milvus POST %s: code %d: %s", path, envelope.Code, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("milvus POST %s: decode data: %w", path, err)
		}
	}
	return nil
}
