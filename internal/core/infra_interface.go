package core

import (
	"context"
	"io"

	"github.com/lexara-id/lexara/internal/models"
)

// DbClient defines all relational persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserScopes(ctx context.Context, userID string) ([]string, error)
	AssignRole(ctx context.Context, userID string, roleID int64) error

	CreateRole(ctx context.Context, role *models.Role) error
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreatePermission(ctx context.Context, perm *models.Permission) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GrantPermission(ctx context.Context, roleID, permissionID int64) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id int64) (*models.Document, error)
	GetDocumentContent(ctx context.Context, id int64) ([]byte, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status string) error
	MarkDocumentIngested(ctx context.Context, id int64) error
	DeleteDocument(ctx context.Context, id int64) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
