package project

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the project schema and its
// tenant prerequisites applied. Cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "project-test-*.db")
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
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE projects (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'planning',
			created_by TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE,
			FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;

		CREATE INDEX idx_projects_company ON projects(company_id);

		CREATE TABLE project_permissions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			level INTEGER NOT NULL,
			expires_at TEXT,
			granted_by TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (granted_by) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;

		CREATE UNIQUE INDEX idx_project_permissions_pair ON project_permissions(project_id, user_id);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying project schema: %v", err)
	}

	return db
}

// seedTenant inserts a company and a user row for foreign key targets.
func seedTenant(t *testing.T, db *sql.DB, companyID, userID string) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO companies (id, name, created_at) VALUES (?, ?, ?)",
		companyID, companyID, now); err != nil {
		t.Fatalf("seeding company %s: %v", companyID, err)
	}
	if _, err := db.Exec(
		"INSERT INTO users (id, company_id, email, created_at) VALUES (?, ?, ?, ?)",
		userID, companyID, userID+"@example.com", now); err != nil {
		t.Fatalf("seeding user %s: %v", userID, err)
	}
}

// seedProject inserts a project owned by the given company.
func seedProject(t *testing.T, db *sql.DB, companyID, name string) *Project {
	t.Helper()

	repo := NewRepository(db)
	p := &Project{
		CompanyID: companyID,
		Name:      name,
		Status:    StatusActive,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("creating project %s: %v", name, err)
	}
	return p
}
