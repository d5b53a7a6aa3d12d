package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexara-id/lexara/internal/api/middlewares"
	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/core/queue"
	"github.com/lexara-id/lexara/internal/core/vectorstore"
	"github.com/lexara-id/lexara/internal/models"
)

const maxUploadBytes = 52 << 20 // 52 MB

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	broker       queue.Broker
	embedder     core.EmbeddingProvider
	store        vectorstore.Store
	cfg          *config.Config
}

func NewDocumentHandler(
	dbclient core.DbClient,
	objectclient core.ObjectClient,
	broker queue.Broker,
	embedder core.EmbeddingProvider,
	store vectorstore.Store,
	cfg *config.Config,
) *DocumentHandler {
	return &DocumentHandler{
		dbclient:     dbclient,
		objectclient: objectclient,
		broker:       broker,
		embedder:     embedder,
		store:        store,
		cfg:          cfg,
	}
}

type uploadResponse struct {
	DocumentID   int64  `json:"document_id"`
	DocumentName string `json:"document_name"`
	DocumentSize int    `json:"document_size"`
	DocumentHash string `json:"document_hash"`
	Status       string `json:"status"`
}

// UploadDocument accepts a multipart upload, persists the document row and a
// copy in object storage, then enqueues the ingestion task. The task is
// published only after the row is committed, so a consumed task always finds
// its document.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	cleanFilename := filepath.Base(header.Filename)

	doc := &models.Document{
		Name:        cleanFilename,
		Description: r.FormValue("description"),
		Type:        r.FormValue("document_type"),
		Hash:        hash,
		ContentType: contentType,
		Status:      models.StatusUploaded,
		UploaderID:  userID,
		UploadedAt:  time.Now(),
		Content:     data,
	}
	if doc.Type == "" {
		doc.Type = "upload"
	}

	uploadctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.dbclient.CreateDocument(uploadctx, doc); err != nil {
		http.Error(w, fmt.Sprintf("failed to store document: %v", err), http.StatusInternalServerError)
		return
	}

	s3Key := fmt.Sprintf("users/%s/documents/%d/%s", userID, doc.ID, cleanFilename)
	url, err := h.objectclient.UploadFile(uploadctx, h.cfg.BucketName, s3Key, data, contentType)
	if err != nil {
		// The database copy keeps ingestion working; the object copy is
		// only for serving.
		slog.Error("object storage upload failed", "document_id", doc.ID, "error", err)
	} else {
		doc.StorageURL = url
	}

	// Queued must land before the task is visible to workers: an in-process
	// worker can finish the whole pipeline before this handler resumes, and
	// a late queued write would regress a terminal status.
	if err := h.dbclient.UpdateDocumentStatus(uploadctx, doc.ID, models.StatusQueued); err != nil {
		http.Error(w, fmt.Sprintf("failed to queue document: %v", err), http.StatusInternalServerError)
		return
	}

	task := queue.Task{
		DocumentID: doc.ID,
		PayloadB64: base64.StdEncoding.EncodeToString(data),
	}
	if err := h.broker.Publish(uploadctx, task); err != nil {
		// The bytes are durable but no task exists; drop back to uploaded
		// so the row does not claim an enqueue that never happened.
		if stErr := h.dbclient.UpdateDocumentStatus(uploadctx, doc.ID, models.StatusUploaded); stErr != nil {
			slog.Error("failed to reset document status", "document_id", doc.ID, "error", stErr)
		}
		http.Error(w, fmt.Sprintf("failed to enqueue ingestion: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(uploadResponse{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		DocumentSize: len(data),
		DocumentHash: doc.Hash,
		Status:       models.StatusQueued,
	})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	documents, err := h.dbclient.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// DeleteDocument removes the document row, its vector-store chunks and the
// object-storage copy.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, err := h.dbclient.GetDocumentByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeleteByDocument(r.Context(), id); err != nil {
		http.Error(w, fmt.Sprintf("failed to delete chunks: %v", err), http.StatusInternalServerError)
		return
	}
	if err := h.dbclient.DeleteDocument(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc.StorageURL != "" {
		s3Key := fmt.Sprintf("users/%s/documents/%d/%s", doc.UploaderID, doc.ID, doc.Name)
		if err := h.objectclient.DeleteFile(r.Context(), h.cfg.BucketName, s3Key); err != nil {
			slog.Error("failed to delete object copy", "document_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []vectorstore.SearchResult `json:"results"`
}

// SearchDocuments embeds the query text and returns the nearest chunks.
func (h *DocumentHandler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	vectors, err := h.embedder.EmbedTexts(r.Context(), []string{req.Query})
	if err != nil || len(vectors) != 1 {
		http.Error(w, "failed to embed query", http.StatusBadGateway)
		return
	}

	results, err := h.store.Search(r.Context(), vectors[0], req.TopK)
	if err != nil {
		http.Error(w, fmt.Sprintf("search failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{Results: results})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
