package models

import (
	"time"
)

// Document status values. A document walks uploaded -> queued -> extracting ->
// chunking -> embedding -> stored, or drops to failed from any stage.
const (
	StatusUploaded   = "uploaded"
	StatusQueued     = "queued"
	StatusExtracting = "extracting"
	StatusChunking   = "chunking"
	StatusEmbedding  = "embedding"
	StatusStored     = "stored"
	StatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Role groups a set of permissions.
type Role struct {
	ID       int64  `db:"id" json:"id"`
	RoleName string `db:"role_name" json:"role_name"`
}

// Permission is a single scope string such as "read:documents".
type Permission struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"permission_name" json:"permission_name"`
	Description string `db:"permission_description" json:"permission_description"`
}

// Document represents an uploaded source document. The raw bytes live in the
// row so the queue payload can always be reconstructed; a copy also goes to
// object storage for serving.
type Document struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"document_name" json:"document_name"`
	Description string    `db:"document_description" json:"document_description"`
	Type        string    `db:"document_type" json:"document_type"`
	Hash        string    `db:"document_hash" json:"document_hash"`
	ContentType string    `db:"content_type" json:"content_type"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	Status      string    `db:"status" json:"status"`
	IsIngested  bool      `db:"is_ingested" json:"is_ingested"`
	UploaderID  string    `db:"uploader_id" json:"uploader_id"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
	Content     []byte    `db:"the_document" json:"-"`
}

// DocumentChunk is one text chunk of a document together with its dense
// embedding. Sequence is the explicit zero-based order of the chunk inside
// its document; it is persisted, not inferred from insertion order.
type DocumentChunk struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID int64     `db:"document_id" json:"document_id"`
	Sequence   int       `db:"sequence" json:"sequence"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
