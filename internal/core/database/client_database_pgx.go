package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the underlying pool for components that share the connection,
// such as the pgvector store.
func (c *DatabaseClient) DB() *sql.DB {
	return c.db
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, full_name, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FullName, user.Email, user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, full_name, email, password_hash, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserScopes resolves the permission names a user holds through its roles.
func (c *DatabaseClient) GetUserScopes(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT DISTINCT p.permission_name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) AssignRole(ctx context.Context, userID string, roleID int64) error {
	const q = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, q, userID, roleID)
	return err
}

// Roles and permissions

func (c *DatabaseClient) CreateRole(ctx context.Context, role *models.Role) error {
	if role == nil {
		return errors.New("nil role")
	}
	const q = `INSERT INTO roles (role_name) VALUES ($1) RETURNING id`
	return c.db.QueryRowContext(ctx, q, role.RoleName).Scan(&role.ID)
}

func (c *DatabaseClient) ListRoles(ctx context.Context) ([]models.Role, error) {
	const q = `SELECT id, role_name FROM roles ORDER BY id`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Role
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.RoleName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CreatePermission(ctx context.Context, perm *models.Permission) error {
	if perm == nil {
		return errors.New("nil permission")
	}
	const q = `
		INSERT INTO permissions (permission_name, permission_description)
		VALUES ($1, $2) RETURNING id
	`
	return c.db.QueryRowContext(ctx, q, perm.Name, perm.Description).Scan(&perm.ID)
}

func (c *DatabaseClient) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	const q = `SELECT id, permission_name, permission_description FROM permissions ORDER BY id`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	const q = `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, q, roleID, permissionID)
	return err
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(document_name, document_description, document_type, document_hash,
			 content_type, storage_url, status, is_ingested, uploader_id, uploaded_at, the_document)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), $11)
		RETURNING id
	`
	return c.db.QueryRowContext(ctx, q,
		doc.Name, doc.Description, doc.Type, doc.Hash,
		doc.ContentType, doc.StorageURL, doc.Status, doc.IsIngested,
		doc.UploaderID, doc.UploadedAt, doc.Content,
	).Scan(&doc.ID)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id int64) (*models.Document, error) {
	const q = `
		SELECT id, document_name, document_description, document_type, document_hash,
		       content_type, storage_url, status, is_ingested, uploader_id, uploaded_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Name, &d.Description, &d.Type, &d.Hash,
		&d.ContentType, &d.StorageURL, &d.Status, &d.IsIngested, &d.UploaderID, &d.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocumentContent fetches only the raw bytes; they are kept out of the
// general document query to avoid dragging blobs through list endpoints.
func (c *DatabaseClient) GetDocumentContent(ctx context.Context, id int64) ([]byte, error) {
	const q = `SELECT the_document FROM documents WHERE id = $1`
	var data []byte
	err := c.db.QueryRowContext(ctx, q, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	const q = `
		SELECT id, document_name, document_description, document_type, document_hash,
		       content_type, storage_url, status, is_ingested, uploader_id, uploaded_at
		FROM documents
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := c.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Description, &d.Type, &d.Hash,
			&d.ContentType, &d.StorageURL, &d.Status, &d.IsIngested, &d.UploaderID, &d.UploadedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	const q = `UPDATE documents SET status = $2 WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

// MarkDocumentIngested flips the ingestion flag; only the worker calls this,
// after every chunk and vector write for the document has succeeded.
func (c *DatabaseClient) MarkDocumentIngested(ctx context.Context, id int64) error {
	const q = `UPDATE documents SET is_ingested = TRUE, status = $2 WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusStored)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id int64) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}
