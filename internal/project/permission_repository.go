package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PermissionRepository defines the interface for per-project grant
// persistence.
type PermissionRepository interface {
	Grant(ctx context.Context, perm *Permission) error
	Get(ctx context.Context, projectID, userID string) (*Permission, error)
	ListByProject(ctx context.Context, projectID string) ([]Permission, error)
	ListByUser(ctx context.Context, userID string) ([]Permission, error)
	Revoke(ctx context.Context, projectID, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLitePermissionRepository implements PermissionRepository using SQLite.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new SQLite-backed permission repository.
func NewPermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

const permissionColumns = `id, project_id, user_id, level, expires_at, granted_by, created_at, updated_at`

// Grant upserts a user's grant on a project. Granting again replaces the
// previous level and expiry, so there is at most one grant per (project,
// user) pair.
func (r *SQLitePermissionRepository) Grant(ctx context.Context, perm *Permission) error {
	if perm.Level < LevelViewer || perm.Level > LevelAdmin {
		return fmt.Errorf("%w: level %d is not grantable", ErrValidation, perm.Level)
	}
	if perm.ID == "" {
		perm.ID = "pp-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	perm.CreatedAt = now
	perm.UpdatedAt = now

	var expiresAt any
	if perm.ExpiresAt != nil {
		expiresAt = perm.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_permissions (`+permissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO UPDATE SET
		   level = excluded.level,
		   expires_at = excluded.expires_at,
		   granted_by = excluded.granted_by,
		   updated_at = excluded.updated_at`,
		perm.ID, perm.ProjectID, perm.UserID, int(perm.Level), expiresAt,
		nullString(perm.GrantedBy), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}

	return nil
}

// Get retrieves a user's grant on a project, expired or not. Callers decide
// what an expired grant means; the resolver treats it as absent.
func (r *SQLitePermissionRepository) Get(ctx context.Context, projectID, userID string) (*Permission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+permissionColumns+` FROM project_permissions WHERE project_id = ? AND user_id = ?`,
		projectID, userID)
	return scanPermission(row)
}

// ListByProject returns all grants on a project.
func (r *SQLitePermissionRepository) ListByProject(ctx context.Context, projectID string) ([]Permission, error) {
	return r.listPermissions(ctx,
		`SELECT `+permissionColumns+` FROM project_permissions WHERE project_id = ? ORDER BY user_id`,
		projectID)
}

// ListByUser returns all grants held by a user.
func (r *SQLitePermissionRepository) ListByUser(ctx context.Context, userID string) ([]Permission, error) {
	return r.listPermissions(ctx,
		`SELECT `+permissionColumns+` FROM project_permissions WHERE user_id = ? ORDER BY project_id`,
		userID)
}

func (r *SQLitePermissionRepository) listPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// Revoke removes a user's grant on a project.
func (r *SQLitePermissionRepository) Revoke(ctx context.Context, projectID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_permissions WHERE project_id = ? AND user_id = ?",
		projectID, userID)
	if err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// DeleteExpired removes grants whose expiry has passed. The resolver already
// ignores them; this just keeps the table tidy.
func (r *SQLitePermissionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_permissions WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired permissions: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// scanPermission scans a grant from any scanner (Row or Rows).
func scanPermission(s scanner) (*Permission, error) {
	var p Permission
	var level int
	var expiresAt, grantedBy sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.ProjectID, &p.UserID, &level, &expiresAt, &grantedBy,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("scanning permission: %w", err)
	}

	p.Level = PermissionLevel(level)
	if grantedBy.Valid {
		p.GrantedBy = grantedBy.String
	}
	if expiresAt.Valid {
		t, perr := time.Parse(time.RFC3339, expiresAt.String)
		if perr == nil {
			p.ExpiresAt = &t
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}
