package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeEmail lowercases and trims an email address. Emails are stored
// normalised, which makes the unique indexes case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dbtx abstracts *sql.DB and *sql.Tx so insert helpers can run both
// standalone and inside a caller-controlled transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CompanyRepository defines the interface for tenant persistence.
type CompanyRepository interface {
	Create(ctx context.Context, company *Company) error
	GetByID(ctx context.Context, id string) (*Company, error)
	GetByEmail(ctx context.Context, email string) (*Company, error)
	Update(ctx context.Context, company *Company) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteCompanyRepository implements CompanyRepository using SQLite.
type SQLiteCompanyRepository struct {
	db *sql.DB
}

// NewCompanyRepository creates a new SQLite-backed company repository.
func NewCompanyRepository(db *sql.DB) *SQLiteCompanyRepository {
	return &SQLiteCompanyRepository{db: db}
}

const companyColumns = `id, name, email, phone, subscription_tier, subscription_starts_at,
	subscription_ends_at, storage_quota_bytes, storage_used_bytes, is_active, is_deleted,
	created_at, updated_at`

// Create inserts a new company. The ID is generated if empty.
func (r *SQLiteCompanyRepository) Create(ctx context.Context, company *Company) error {
	return insertCompany(ctx, r.db, company)
}

// insertCompany inserts a company row through db or an open transaction.
func insertCompany(ctx context.Context, q dbtx, company *Company) error {
	if company.ID == "" {
		company.ID = "cmp-" + uuid.NewString()[:8]
	}
	company.Email = NormalizeEmail(company.Email)

	now := time.Now().UTC().Truncate(time.Second)
	company.CreatedAt = now
	company.UpdatedAt = now

	var endsAt any
	if company.SubscriptionEndsAt != nil {
		endsAt = company.SubscriptionEndsAt.UTC().Format(time.RFC3339)
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO companies (`+companyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID, company.Name, company.Email, nullString(company.Phone),
		string(company.SubscriptionTier),
		company.SubscriptionStartsAt.UTC().Format(time.RFC3339), endsAt,
		company.StorageQuotaBytes, company.StorageUsedBytes,
		boolToInt(company.IsActive), boolToInt(company.IsDeleted),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCompanyEmailExists
		}
		return fmt.Errorf("creating company: %w", err)
	}

	return nil
}

// GetByID retrieves a company by its unique ID. Soft-deleted companies are
// not returned.
func (r *SQLiteCompanyRepository) GetByID(ctx context.Context, id string) (*Company, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ? AND is_deleted = 0`, id)
	return scanCompany(row)
}

// GetByEmail retrieves a company by its contact email (case-insensitive).
func (r *SQLiteCompanyRepository) GetByEmail(ctx context.Context, email string) (*Company, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE email = ? AND is_deleted = 0`,
		NormalizeEmail(email))
	return scanCompany(row)
}

// Update modifies a company's mutable fields (name, phone, tier, window,
// quota/used counters, active flag).
func (r *SQLiteCompanyRepository) Update(ctx context.Context, company *Company) error {
	now := time.Now().UTC().Truncate(time.Second)
	company.UpdatedAt = now

	var endsAt any
	if company.SubscriptionEndsAt != nil {
		endsAt = company.SubscriptionEndsAt.UTC().Format(time.RFC3339)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE companies SET name = ?, phone = ?, subscription_tier = ?,
		 subscription_starts_at = ?, subscription_ends_at = ?,
		 storage_quota_bytes = ?, storage_used_bytes = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = 0`,
		company.Name, nullString(company.Phone), string(company.SubscriptionTier),
		company.SubscriptionStartsAt.UTC().Format(time.RFC3339), endsAt,
		company.StorageQuotaBytes, company.StorageUsedBytes,
		boolToInt(company.IsActive), now.Format(time.RFC3339), company.ID,
	)
	if err != nil {
		return fmt.Errorf("updating company: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// SoftDelete marks a company as deleted. Rows are never hard-deleted so the
// audit trail stays intact.
func (r *SQLiteCompanyRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE companies SET is_deleted = 1, is_active = 0, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting company: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// Count returns the number of non-deleted companies.
func (r *SQLiteCompanyRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM companies WHERE is_deleted = 0").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting companies: %w", err)
	}
	return count, nil
}

// scanCompany scans a company from any scanner (Row or Rows).
func scanCompany(s scanner) (*Company, error) {
	var c Company
	var phone, endsAt sql.NullString
	var tier string
	var isActive, isDeleted int
	var startsAt, createdAt, updatedAt string

	err := s.Scan(&c.ID, &c.Name, &c.Email, &phone, &tier, &startsAt, &endsAt,
		&c.StorageQuotaBytes, &c.StorageUsedBytes, &isActive, &isDeleted,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("scanning company: %w", err)
	}

	c.SubscriptionTier = SubscriptionTier(tier)
	c.IsActive = isActive != 0
	c.IsDeleted = isDeleted != 0
	if phone.Valid {
		c.Phone = phone.String
	}
	if endsAt.Valid {
		t, perr := time.Parse(time.RFC3339, endsAt.String)
		if perr == nil {
			c.SubscriptionEndsAt = &t
		}
	}

	c.SubscriptionStartsAt, _ = time.Parse(time.RFC3339, startsAt) //nolint:errcheck // format is controlled
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)           //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)           //nolint:errcheck // format is controlled

	return &c, nil
}
