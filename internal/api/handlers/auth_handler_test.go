package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/lexara-id/lexara/internal/api/middlewares"
	"github.com/lexara-id/lexara/internal/models"
)

const testSecret = "test-secret"

type fakeUserDB struct {
	users  map[string]*models.User
	scopes map[string][]string
}

func newFakeUserDB() *fakeUserDB {
	return &fakeUserDB{users: map[string]*models.User{}, scopes: map[string][]string{}}
}

func (f *fakeUserDB) CreateUser(_ context.Context, user *models.User) error {
	if _, exists := f.users[user.Email]; exists {
		return errors.New("duplicate email")
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.users[email], nil
}

func (f *fakeUserDB) GetUserScopes(_ context.Context, userID string) ([]string, error) {
	return f.scopes[userID], nil
}

func (f *fakeUserDB) AssignRole(context.Context, string, int64) error              { return nil }
func (f *fakeUserDB) CreateRole(context.Context, *models.Role) error               { return nil }
func (f *fakeUserDB) ListRoles(context.Context) ([]models.Role, error)             { return nil, nil }
func (f *fakeUserDB) CreatePermission(context.Context, *models.Permission) error   { return nil }
func (f *fakeUserDB) ListPermissions(context.Context) ([]models.Permission, error) { return nil, nil }
func (f *fakeUserDB) GrantPermission(context.Context, int64, int64) error          { return nil }
func (f *fakeUserDB) CreateDocument(context.Context, *models.Document) error       { return nil }
func (f *fakeUserDB) GetDocumentByID(context.Context, int64) (*models.Document, error) {
	return nil, nil
}
func (f *fakeUserDB) GetDocumentContent(context.Context, int64) ([]byte, error) { return nil, nil }
func (f *fakeUserDB) ListDocuments(context.Context, int, int) ([]models.Document, error) {
	return nil, nil
}
func (f *fakeUserDB) UpdateDocumentStatus(context.Context, int64, string) error { return nil }
func (f *fakeUserDB) MarkDocumentIngested(context.Context, int64) error         { return nil }
func (f *fakeUserDB) DeleteDocument(context.Context, int64) error               { return nil }
func (f *fakeUserDB) Close() error                                              { return nil }

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSignupAndLogin(t *testing.T) {
	db := newFakeUserDB()
	h := NewAuthHandler(db, testSecret)

	rec := postJSON(t, h.Signup, map[string]string{
		"full_name": "Ada Lovelace",
		"email":     "ada@example.com",
		"password":  "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var signupResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signupResp))
	assert.NotEmpty(t, signupResp["token"])

	rec = postJSON(t, h.Login, map[string]string{
		"email":    "ada@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp["token"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	db := newFakeUserDB()
	h := NewAuthHandler(db, testSecret)

	body := map[string]string{"email": "ada@example.com", "password": "hunter22"}
	require.Equal(t, http.StatusOK, postJSON(t, h.Signup, body).Code)
	assert.Equal(t, http.StatusConflict, postJSON(t, h.Signup, body).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	db := newFakeUserDB()
	h := NewAuthHandler(db, testSecret)

	require.Equal(t, http.StatusOK, postJSON(t, h.Signup, map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	}).Code)

	rec := postJSON(t, h.Login, map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	h := NewAuthHandler(newFakeUserDB(), testSecret)

	rec := postJSON(t, h.Login, map[string]string{
		"email": "nobody@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRoundTrip(t *testing.T) {
	db := newFakeUserDB()
	h := NewAuthHandler(db, testSecret)

	rec := postJSON(t, h.Signup, map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token := resp["token"]

	var gotUserID string
	protected := middleware.JWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = middleware.UserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	protected.ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, db.users["ada@example.com"].ID, gotUserID)
}

func TestJWTMiddlewareRejectsBadToken(t *testing.T) {
	protected := middleware.JWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Bearer not-a-token", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		out := httptest.NewRecorder()
		protected.ServeHTTP(out, req)
		assert.Equal(t, http.StatusUnauthorized, out.Code, "header %q", header)
	}
}

func TestRequireScope(t *testing.T) {
	db := newFakeUserDB()
	db.scopes["user-1"] = []string{"read:documents"}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withUser := func(userID string, handler http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
		out := httptest.NewRecorder()
		handler.ServeHTTP(out, req)
		return out
	}

	allowed := middleware.RequireScope(db, "read:documents")(next)
	assert.Equal(t, http.StatusOK, withUser("user-1", allowed).Code)

	denied := middleware.RequireScope(db, "delete:documents")(next)
	assert.Equal(t, http.StatusForbidden, withUser("user-1", denied).Code)
}
