package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for document metadata persistence.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	CreateVersion(ctx context.Context, rootID string, d *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	GetLatest(ctx context.Context, rootID string) (*Document, error)
	ListVersions(ctx context.Context, rootID string) ([]Document, error)
	ListByProject(ctx context.Context, projectID string) ([]Document, error)
	DeleteChain(ctx context.Context, rootID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed document repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const documentColumns = `id, project_id, company_id, root_id, parent_document_id, title,
	file_name, file_size, content_type, content_hash, document_type, version,
	is_latest_version, created_by, created_at, updated_at`

func validateDocument(d *Document) error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(d.FileName) == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if d.FileSize < 0 {
		return fmt.Errorf("%w: file size cannot be negative", ErrValidation)
	}
	if d.DocumentType == "" {
		d.DocumentType = TypeOther
	}
	if !IsValidType(d.DocumentType) {
		return fmt.Errorf("%w: invalid document type %q", ErrValidation, d.DocumentType)
	}
	return nil
}

// Create starts a new document chain: version 1, latest, root_id equal to
// its own id. Storage quota is checked and the company's usage counter
// updated in the same transaction.
func (r *SQLiteRepository) Create(ctx context.Context, d *Document) error {
	if err := validateDocument(d); err != nil {
		return err
	}

	d.ID = "doc-" + uuid.NewString()[:8]
	d.RootID = d.ID
	d.ParentDocumentID = ""
	d.Version = 1
	d.IsLatestVersion = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning document transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if err := chargeStorage(ctx, tx, d.CompanyID, d.FileSize); err != nil {
		return err
	}
	if err := insertDocument(ctx, tx, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document: %w", err)
	}
	return nil
}

// CreateVersion appends a new version to an existing chain. The previous
// latest row is flipped off and the new row inserted in one transaction;
// the partial unique index makes a concurrent loser fail with
// ErrVersionConflict instead of producing two latest rows.
func (r *SQLiteRepository) CreateVersion(ctx context.Context, rootID string, d *Document) error {
	if err := validateDocument(d); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning version transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	latest, err := getDocument(ctx, tx,
		`SELECT `+documentColumns+` FROM documents WHERE root_id = ? AND is_latest_version = 1`, rootID)
	if err != nil {
		return err
	}

	if err := appendVersion(ctx, tx, latest, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing version: %w", err)
	}
	return nil
}

// appendVersion retires latest and inserts d as its successor inside tx.
// The UPDATE is guarded on is_latest_version so a writer holding a stale
// latest row matches zero rows and gets ErrVersionConflict; the partial
// unique index backstops the same guarantee at insert time.
func appendVersion(ctx context.Context, tx *sql.Tx, latest, d *Document) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE documents SET is_latest_version = 0 WHERE id = ? AND is_latest_version = 1",
		latest.ID)
	if err != nil {
		return fmt.Errorf("retiring previous version: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrVersionConflict
	}

	d.ID = "doc-" + uuid.NewString()[:8]
	d.RootID = latest.RootID
	d.ProjectID = latest.ProjectID
	d.CompanyID = latest.CompanyID
	d.ParentDocumentID = latest.ID
	d.Version = latest.Version + 1
	d.IsLatestVersion = true

	if err := chargeStorage(ctx, tx, d.CompanyID, d.FileSize); err != nil {
		return err
	}
	if err := insertDocument(ctx, tx, d); err != nil {
		if isUniqueViolation(err) {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

// chargeStorage verifies the company's quota admits size more bytes and
// bumps the usage counter. Runs inside the caller's transaction.
func chargeStorage(ctx context.Context, tx *sql.Tx, companyID string, size int64) error {
	var quota, used int64
	err := tx.QueryRowContext(ctx,
		"SELECT storage_quota_bytes, storage_used_bytes FROM companies WHERE id = ? AND is_deleted = 0",
		companyID).Scan(&quota, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: company %s", ErrNotFound, companyID)
		}
		return fmt.Errorf("reading storage counters: %w", err)
	}

	if used+size > quota {
		return fmt.Errorf("%w: %d of %d bytes used, %d requested", ErrQuotaExceeded, used, quota, size)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE companies SET storage_used_bytes = storage_used_bytes + ? WHERE id = ?",
		size, companyID); err != nil {
		return fmt.Errorf("charging storage: %w", err)
	}
	return nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, d *Document) error {
	now := time.Now().UTC().Truncate(time.Second)
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := tx.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.CompanyID, d.RootID, nullString(d.ParentDocumentID),
		d.Title, d.FileName, d.FileSize, nullString(d.ContentType),
		nullString(d.ContentHash), string(d.DocumentType), d.Version,
		boolToInt(d.IsLatestVersion), nullString(d.CreatedBy),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetByID retrieves a single version row.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	return getDocument(ctx, r.db,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
}

// GetLatest retrieves the latest version of a chain.
func (r *SQLiteRepository) GetLatest(ctx context.Context, rootID string) (*Document, error) {
	return getDocument(ctx, r.db,
		`SELECT `+documentColumns+` FROM documents WHERE root_id = ? AND is_latest_version = 1`, rootID)
}

// ListVersions returns every version of a chain, oldest first.
func (r *SQLiteRepository) ListVersions(ctx context.Context, rootID string) ([]Document, error) {
	docs, err := r.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE root_id = ? ORDER BY version ASC`, rootID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs, nil
}

// ListByProject returns the latest version of every chain in a project.
func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID string) ([]Document, error) {
	return r.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = ? AND is_latest_version = 1 ORDER BY created_at DESC`, projectID)
}

// DeleteChain removes every version of a chain and refunds the storage it
// consumed.
func (r *SQLiteRepository) DeleteChain(ctx context.Context, rootID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var companyID string
	var total int64
	err = tx.QueryRowContext(ctx,
		"SELECT company_id, COALESCE(SUM(file_size), 0) FROM documents WHERE root_id = ? GROUP BY company_id",
		rootID).Scan(&companyID, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("summing chain storage: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE root_id = ?", rootID); err != nil {
		return fmt.Errorf("deleting chain: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE companies SET storage_used_bytes = MAX(storage_used_bytes - ?, 0) WHERE id = ?",
		total, companyID); err != nil {
		return fmt.Errorf("refunding storage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) listDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// querier abstracts *sql.DB and *sql.Tx for single-row reads.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q querier, query string, args ...any) (*Document, error) {
	return scanDocument(q.QueryRowContext(ctx, query, args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a document from any scanner (Row or Rows).
func scanDocument(s scanner) (*Document, error) {
	var d Document
	var parentID, contentType, contentHash, createdBy sql.NullString
	var docType string
	var isLatest int
	var createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.ProjectID, &d.CompanyID, &d.RootID, &parentID,
		&d.Title, &d.FileName, &d.FileSize, &contentType, &contentHash,
		&docType, &d.Version, &isLatest, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	d.DocumentType = Type(docType)
	d.IsLatestVersion = isLatest != 0
	if parentID.Valid {
		d.ParentDocumentID = parentID.String
	}
	if contentType.Valid {
		d.ContentType = contentType.String
	}
	if contentHash.Valid {
		d.ContentHash = contentHash.String
	}
	if createdBy.Valid {
		d.CreatedBy = createdBy.String
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
