package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/lexara-id/lexara/internal/api/middlewares"
	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core/queue"
	"github.com/lexara-id/lexara/internal/models"
)

type fakeDocDB struct {
	*fakeUserDB
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*models.Document
	trail  []string
}

func newFakeDocDB() *fakeDocDB {
	return &fakeDocDB{fakeUserDB: newFakeUserDB(), docs: map[int64]*models.Document{}}
}

func (f *fakeDocDB) CreateDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	doc.ID = f.nextID
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocDB) GetDocumentByID(_ context.Context, id int64) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}

func (f *fakeDocDB) UpdateDocumentStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		d.Status = status
	}
	f.trail = append(f.trail, status)
	return nil
}

func (f *fakeDocDB) MarkDocumentIngested(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		d.IsIngested = true
	}
	return nil
}

func (f *fakeDocDB) document(id int64) models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.docs[id]
}

func (f *fakeDocDB) statusTrail() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trail...)
}

type fakeObjectClient struct{}

func (fakeObjectClient) UploadFile(_ context.Context, bucket, key string, _ []byte, _ string) (string, error) {
	return "https://" + bucket + ".example.com/" + key, nil
}
func (fakeObjectClient) DeleteFile(context.Context, string, string) error  { return nil }
func (fakeObjectClient) GetFile(context.Context, string, string) ([]byte, error) {
	return nil, nil
}
func (fakeObjectClient) GetObjectReader(context.Context, string, string) (io.ReadCloser, error) {
	return nil, nil
}

// syncBroker runs onPublish inside Publish, standing in for an in-process
// worker that consumes the task before the upload handler resumes.
type syncBroker struct {
	onPublish  func(queue.Task)
	publishErr error
	published  []queue.Task
}

func (b *syncBroker) Publish(_ context.Context, task queue.Task) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, task)
	if b.onPublish != nil {
		b.onPublish(task)
	}
	return nil
}

func (b *syncBroker) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *syncBroker) Close() error { return nil }

func uploadRequest(t *testing.T, h *DocumentHandler, userID, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)
	return rec
}

func newUploadHandler(db *fakeDocDB, broker *syncBroker) *DocumentHandler {
	cfg := &config.Config{BucketName: "docs"}
	return NewDocumentHandler(db, fakeObjectClient{}, broker, nil, nil, cfg)
}

func TestUploadDocument(t *testing.T) {
	db := newFakeDocDB()
	broker := &syncBroker{}
	h := newUploadHandler(db, broker)

	rec := uploadRequest(t, h, "user-1", "notes.txt", []byte("hello world"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.DocumentID)
	assert.Equal(t, "notes.txt", resp.DocumentName)
	assert.Equal(t, len("hello world"), resp.DocumentSize)
	assert.NotEmpty(t, resp.DocumentHash)
	assert.Equal(t, models.StatusQueued, resp.Status)

	require.Len(t, broker.published, 1)
	assert.Equal(t, int64(1), broker.published[0].DocumentID)
	assert.NotEmpty(t, broker.published[0].PayloadB64)

	doc := db.document(1)
	assert.Equal(t, models.StatusQueued, doc.Status)
	assert.Equal(t, "user-1", doc.UploaderID)
}

func TestUploadQueuedLandsBeforePublish(t *testing.T) {
	db := newFakeDocDB()
	broker := &syncBroker{}
	// The worker walks the document all the way to its terminal state
	// before Publish returns.
	broker.onPublish = func(task queue.Task) {
		require.NoError(t, db.UpdateDocumentStatus(context.Background(), task.DocumentID, models.StatusStored))
		require.NoError(t, db.MarkDocumentIngested(context.Background(), task.DocumentID))
	}
	h := newUploadHandler(db, broker)

	rec := uploadRequest(t, h, "user-1", "notes.txt", []byte("hello world"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	doc := db.document(1)
	assert.Equal(t, models.StatusStored, doc.Status, "terminal status must not be overwritten after the worker finishes")
	assert.True(t, doc.IsIngested)

	trail := db.statusTrail()
	require.NotEmpty(t, trail)
	assert.Equal(t, models.StatusQueued, trail[0], "queued must be recorded before the task reaches the broker")
}

func TestUploadPublishFailureResetsStatus(t *testing.T) {
	db := newFakeDocDB()
	broker := &syncBroker{publishErr: errors.New("broker unavailable")}
	h := newUploadHandler(db, broker)

	rec := uploadRequest(t, h, "user-1", "notes.txt", []byte("hello world"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	doc := db.document(1)
	assert.Equal(t, models.StatusUploaded, doc.Status, "a row without a task must not claim to be queued")
	assert.False(t, doc.IsIngested)
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	db := newFakeDocDB()
	h := newUploadHandler(db, &syncBroker{})

	rec := uploadRequest(t, h, "user-1", "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, db.statusTrail())
}
