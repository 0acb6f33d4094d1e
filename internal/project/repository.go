package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for project persistence.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByCompany(ctx context.Context, companyID string) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed project repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, company_id, name, description, status, created_by, created_at, updated_at`

// Create inserts a new project. The ID is generated if empty and the status
// defaults to planning.
func (r *SQLiteRepository) Create(ctx context.Context, p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if p.ID == "" {
		p.ID = "prj-" + uuid.NewString()[:8]
	}
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	if !IsValidStatus(p.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, p.Status)
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Name, nullString(p.Description), string(p.Status),
		nullString(p.CreatedBy), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by its unique ID. Callers must still verify
// the project's company matches the requesting tenant.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListByCompany returns all projects of one company, newest first.
func (r *SQLiteRepository) ListByCompany(ctx context.Context, companyID string) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE company_id = ? ORDER BY created_at DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	if projects == nil {
		projects = []Project{}
	}
	return projects, nil
}

// Update modifies a project's name, description, and status.
func (r *SQLiteRepository) Update(ctx context.Context, p *Project) error {
	if !IsValidStatus(p.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, p.Status)
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.Name, nullString(p.Description), string(p.Status), now.Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Delete removes a project. Grants cascade away with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject scans a project from any scanner (Row or Rows).
func scanProject(s scanner) (*Project, error) {
	var p Project
	var description, createdBy sql.NullString
	var status string
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.CompanyID, &p.Name, &description, &status, &createdBy,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	p.Status = ProjectStatus(status)
	if description.Valid {
		p.Description = description.String
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
