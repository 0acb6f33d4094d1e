package audit

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "audit-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			user_id TEXT,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			old_values TEXT,
			new_values TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE INDEX idx_audit_logs_company ON audit_logs(company_id, created_at);
		CREATE INDEX idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying audit schema: %v", err)
	}

	return db
}

func TestRepository_CreateAndList(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	log := &AuditLog{
		CompanyID:  "cmp-a",
		UserID:     "usr-a",
		Action:     "update",
		EntityType: "project",
		EntityID:   "prj-1",
		OldValues:  map[string]any{"status": "planning"},
		NewValues:  map[string]any{"status": "active"},
		IPAddress:  "192.0.2.1",
		UserAgent:  "test-agent/1.0",
	}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if log.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	result, err := repo.List(context.Background(), Filter{CompanyID: "cmp-a"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("List() = %d/%d entries, want 1", len(result.Logs), result.Total)
	}

	got := result.Logs[0]
	if got.Action != "update" || got.EntityID != "prj-1" {
		t.Errorf("List() entry = %+v", got)
	}
	if got.OldValues["status"] != "planning" || got.NewValues["status"] != "active" {
		t.Errorf("snapshots not round-tripped: old=%v new=%v", got.OldValues, got.NewValues)
	}
	if got.IPAddress != "192.0.2.1" || got.UserAgent != "test-agent/1.0" {
		t.Errorf("request metadata not round-tripped: %+v", got)
	}
}

func TestRepository_Create_RequiresCompany(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.Create(context.Background(), &AuditLog{Action: "login", EntityType: "user"})
	if err == nil {
		t.Error("Create() without company should fail")
	}
}

func TestRepository_List_CompanyScoped(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	for _, company := range []string{"cmp-a", "cmp-a", "cmp-b"} {
		if err := repo.Create(context.Background(), &AuditLog{
			CompanyID: company, Action: "login", EntityType: "user",
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(context.Background(), Filter{CompanyID: "cmp-a"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("List() total = %d, want 2 (company scoped)", result.Total)
	}
	for _, log := range result.Logs {
		if log.CompanyID != "cmp-a" {
			t.Errorf("entry %s leaked from company %s", log.ID, log.CompanyID)
		}
	}

	if _, err := repo.List(context.Background(), Filter{}); err == nil {
		t.Error("List() without company scope should fail")
	}
}

func TestRepository_List_Filters(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	entries := []AuditLog{
		{CompanyID: "cmp-a", UserID: "usr-1", Action: "create", EntityType: "project", EntityID: "prj-1"},
		{CompanyID: "cmp-a", UserID: "usr-1", Action: "update", EntityType: "project", EntityID: "prj-1"},
		{CompanyID: "cmp-a", UserID: "usr-2", Action: "create", EntityType: "document", EntityID: "doc-1"},
	}
	for i := range entries {
		if err := repo.Create(context.Background(), &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by action", Filter{CompanyID: "cmp-a", Action: "create"}, 2},
		{"by entity type", Filter{CompanyID: "cmp-a", EntityType: "project"}, 2},
		{"by entity id", Filter{CompanyID: "cmp-a", EntityType: "project", EntityID: "prj-1"}, 2},
		{"by user", Filter{CompanyID: "cmp-a", UserID: "usr-2"}, 1},
		{"no match", Filter{CompanyID: "cmp-a", Action: "delete"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("List() total = %d, want %d", result.Total, tt.want)
			}
		})
	}
}

func TestRepository_List_Pagination(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := repo.Create(context.Background(), &AuditLog{
			CompanyID:  "cmp-a",
			Action:     "login",
			EntityType: "user",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(context.Background(), Filter{CompanyID: "cmp-a", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Logs) != 2 {
		t.Errorf("page size = %d, want 2", len(result.Logs))
	}

	// Newest first
	full, err := repo.List(context.Background(), Filter{CompanyID: "cmp-a"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := 1; i < len(full.Logs); i++ {
		if full.Logs[i].CreatedAt.After(full.Logs[i-1].CreatedAt) {
			t.Error("logs should be ordered newest first")
			break
		}
	}
}

func TestRepository_List_ClampsLimit(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	result, err := repo.List(context.Background(), Filter{CompanyID: "cmp-a", Limit: 9999})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("limit should clamp to 200, got %d", result.Limit)
	}

	result, err = repo.List(context.Background(), Filter{CompanyID: "cmp-a", Limit: -1, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 50 || result.Offset != 0 {
		t.Errorf("defaults should be limit 50 offset 0, got %d/%d", result.Limit, result.Offset)
	}
}
