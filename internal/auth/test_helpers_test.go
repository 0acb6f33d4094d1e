package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veridocs/veridocs-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the tenant schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			subscription_tier TEXT NOT NULL DEFAULT 'trial',
			subscription_starts_at TEXT NOT NULL,
			subscription_ends_at TEXT,
			storage_quota_bytes INTEGER NOT NULL DEFAULT 0,
			storage_used_bytes INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE UNIQUE INDEX idx_companies_email ON companies(email);

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			last_login_at TEXT,
			reset_token TEXT,
			reset_token_expires_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
		) STRICT;

		CREATE UNIQUE INDEX idx_users_company_email ON users(company_id, email);
		CREATE INDEX idx_users_email ON users(email);
		CREATE INDEX idx_users_company ON users(company_id);

		CREATE TABLE refresh_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			family_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_refresh_tokens_user ON refresh_tokens(user_id);
		CREATE INDEX idx_refresh_tokens_family ON refresh_tokens(family_id);
		CREATE INDEX idx_refresh_tokens_expires ON refresh_tokens(expires_at);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying tenant schema: %v", err)
	}

	return db
}

// seedTestCompany inserts an active trial company and returns it.
func seedTestCompany(t *testing.T, db *sql.DB, name, email string) *Company {
	t.Helper()

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, TrialDays)
	repo := NewCompanyRepository(db)
	company := &Company{
		Name:                 name,
		Email:                email,
		SubscriptionTier:     TierTrial,
		SubscriptionStartsAt: now,
		SubscriptionEndsAt:   &trialEnd,
		StorageQuotaBytes:    TrialStorageQuotaBytes,
		IsActive:             true,
	}
	if err := repo.Create(context.Background(), company); err != nil {
		t.Fatalf("creating test company %s: %v", name, err)
	}
	return company
}

// seedTestUser inserts an active user in the given company and returns it.
// The password is always "test-password-1".
func seedTestUser(t *testing.T, db *sql.DB, companyID, email string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password-1")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		CompanyID:    companyID,
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

// testEngine builds an engine over the given database with fast token settings.
func testEngine(t *testing.T, db *sql.DB) *Engine {
	t.Helper()

	return NewEngine(db,
		NewCompanyRepository(db),
		NewUserRepository(db),
		NewTokenRepository(db),
		EngineConfig{
			JWTSecret:       "test-secret-at-least-32-characters!!",
			AccessTokenTTL:  15,
			RefreshTokenTTL: 7,
		},
		logging.Default(),
	)
}
