package project

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPermissionRepository_GrantAndGet(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-a")
	seedTenant(t, db, "cmp-a", "usr-granter")
	grants := NewPermissionRepository(db)

	p := seedProject(t, db, "cmp-a", "Matter")

	perm := &Permission{
		ProjectID: p.ID,
		UserID:    "usr-a",
		Level:     LevelCommenter,
		GrantedBy: "usr-granter",
	}
	if err := grants.Grant(context.Background(), perm); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	got, err := grants.Get(context.Background(), p.ID, "usr-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Level != LevelCommenter {
		t.Errorf("Level = %v, want %v", got.Level, LevelCommenter)
	}
	if got.GrantedBy != "usr-granter" {
		t.Errorf("GrantedBy = %q, want usr-granter", got.GrantedBy)
	}
	if got.ExpiresAt != nil {
		t.Error("grant without expiry should have nil ExpiresAt")
	}
}

func TestPermissionRepository_Grant_UpsertsLevel(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-a")
	grants := NewPermissionRepository(db)

	p := seedProject(t, db, "cmp-a", "Matter")

	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-a", Level: LevelViewer,
	}); err != nil {
		t.Fatalf("first Grant() error = %v", err)
	}
	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-a", Level: LevelAdmin,
	}); err != nil {
		t.Fatalf("second Grant() error = %v", err)
	}

	got, err := grants.Get(context.Background(), p.ID, "usr-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Level != LevelAdmin {
		t.Errorf("re-granting should replace the level, got %v", got.Level)
	}

	// Still exactly one row for the pair
	perms, err := grants.ListByProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(perms) != 1 {
		t.Errorf("expected 1 grant after upsert, got %d", len(perms))
	}
}

func TestPermissionRepository_Grant_RejectsBadLevel(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-a")
	grants := NewPermissionRepository(db)

	p := seedProject(t, db, "cmp-a", "Matter")

	for _, level := range []PermissionLevel{LevelNone, PermissionLevel(9)} {
		err := grants.Grant(context.Background(), &Permission{
			ProjectID: p.ID, UserID: "usr-a", Level: level,
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Grant(level=%d) error = %v, want ErrValidation", level, err)
		}
	}
}

func TestPermissionRepository_Revoke(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-a")
	grants := NewPermissionRepository(db)

	p := seedProject(t, db, "cmp-a", "Matter")

	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-a", Level: LevelEditor,
	}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	if err := grants.Revoke(context.Background(), p.ID, "usr-a"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := grants.Get(context.Background(), p.ID, "usr-a"); !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("revoked grant should be ErrPermissionNotFound, got %v", err)
	}
	if err := grants.Revoke(context.Background(), p.ID, "usr-a"); !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("second Revoke() should be ErrPermissionNotFound, got %v", err)
	}
}

func TestPermissionRepository_DeleteExpired(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-a")
	seedTenant(t, db, "cmp-a", "usr-b")
	grants := NewPermissionRepository(db)

	p := seedProject(t, db, "cmp-a", "Matter")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-a", Level: LevelViewer, ExpiresAt: &past,
	}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-b", Level: LevelViewer, ExpiresAt: &future,
	}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	deleted, err := grants.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", deleted)
	}
	if _, err := grants.Get(context.Background(), p.ID, "usr-b"); err != nil {
		t.Errorf("unexpired grant should survive, got %v", err)
	}
}
