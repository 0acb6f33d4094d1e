package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veridocs/veridocs-core/internal/auth"
)

func testResolver(t *testing.T) (*Resolver, *SQLiteRepository, *SQLitePermissionRepository, *Project) {
	t.Helper()

	db := testDB(t)
	seedTenant(t, db, "cmp-a", "usr-member")
	seedTenant(t, db, "cmp-a", "usr-admin")
	seedTenant(t, db, "cmp-b", "usr-outsider")

	repo := NewRepository(db)
	grants := NewPermissionRepository(db)
	p := seedProject(t, db, "cmp-a", "Matter")

	return NewResolver(repo, grants), repo, grants, p
}

func TestResolver_TenantBoundaryBeatsRole(t *testing.T) {
	resolver, _, _, p := testResolver(t)

	// Even a company owner is denied outside their own company
	outsider := Actor{UserID: "usr-outsider", CompanyID: "cmp-b", Role: auth.RoleCompanyOwner}
	_, err := resolver.Authorize(context.Background(), outsider, p.ID, LevelViewer)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("cross-tenant access should be ErrAccessDenied, got %v", err)
	}

	level, err := resolver.EffectiveLevel(context.Background(), outsider, p.ID)
	if err != nil {
		t.Fatalf("EffectiveLevel() error = %v", err)
	}
	if level != LevelNone {
		t.Errorf("cross-tenant effective level = %v, want none", level)
	}
}

func TestResolver_RoleBypass(t *testing.T) {
	resolver, _, _, p := testResolver(t)

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleCompanyOwner} {
		actor := Actor{UserID: "usr-admin", CompanyID: "cmp-a", Role: role}
		if _, err := resolver.Authorize(context.Background(), actor, p.ID, LevelAdmin); err != nil {
			t.Errorf("role %s should bypass grants, got %v", role, err)
		}
	}
}

func TestResolver_NoGrantDenies(t *testing.T) {
	resolver, _, _, p := testResolver(t)

	member := Actor{UserID: "usr-member", CompanyID: "cmp-a", Role: auth.RoleUser}
	_, err := resolver.Authorize(context.Background(), member, p.ID, LevelViewer)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("member without grant should be denied, got %v", err)
	}
}

func TestResolver_LevelOrdering(t *testing.T) {
	resolver, _, grants, p := testResolver(t)

	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-member", Level: LevelEditor,
	}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	member := Actor{UserID: "usr-member", CompanyID: "cmp-a", Role: auth.RoleUser}

	// Editor satisfies viewer, commenter, and editor requirements
	for _, required := range []PermissionLevel{LevelViewer, LevelCommenter, LevelEditor} {
		if _, err := resolver.Authorize(context.Background(), member, p.ID, required); err != nil {
			t.Errorf("editor grant should satisfy %s, got %v", required, err)
		}
	}

	// But not admin
	_, err := resolver.Authorize(context.Background(), member, p.ID, LevelAdmin)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("editor grant should not satisfy admin, got %v", err)
	}
}

func TestResolver_ExpiredGrantBehavesAsAbsent(t *testing.T) {
	resolver, _, grants, p := testResolver(t)

	past := time.Now().Add(-time.Minute)
	if err := grants.Grant(context.Background(), &Permission{
		ProjectID: p.ID, UserID: "usr-member", Level: LevelAdmin, ExpiresAt: &past,
	}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	member := Actor{UserID: "usr-member", CompanyID: "cmp-a", Role: auth.RoleUser}
	_, err := resolver.Authorize(context.Background(), member, p.ID, LevelViewer)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expired grant should deny like a missing one, got %v", err)
	}

	level, err := resolver.EffectiveLevel(context.Background(), member, p.ID)
	if err != nil {
		t.Fatalf("EffectiveLevel() error = %v", err)
	}
	if level != LevelNone {
		t.Errorf("expired grant effective level = %v, want none", level)
	}
}

func TestResolver_UnknownProject(t *testing.T) {
	resolver, _, _, _ := testResolver(t)

	member := Actor{UserID: "usr-member", CompanyID: "cmp-a", Role: auth.RoleUser}
	_, err := resolver.Authorize(context.Background(), member, "prj-missing", LevelViewer)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("unknown project should be ErrProjectNotFound, got %v", err)
	}
}

func TestPermissionLevel_Ordering(t *testing.T) {
	ordered := []PermissionLevel{LevelNone, LevelViewer, LevelCommenter, LevelEditor, LevelAdmin}
	for i := 1; i < len(ordered); i++ {
		if ordered[i] <= ordered[i-1] {
			t.Errorf("%s should rank above %s", ordered[i], ordered[i-1])
		}
	}

	if !LevelAdmin.Allows(LevelViewer) {
		t.Error("admin should allow viewer-level operations")
	}
	if LevelViewer.Allows(LevelEditor) {
		t.Error("viewer should not allow editor-level operations")
	}
}

func TestParsePermissionLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PermissionLevel
		ok   bool
	}{
		{"viewer", LevelViewer, true},
		{"commenter", LevelCommenter, true},
		{"editor", LevelEditor, true},
		{"admin", LevelAdmin, true},
		{"none", LevelNone, false},
		{"owner", LevelNone, false},
		{"", LevelNone, false},
	}

	for _, tt := range tests {
		got, err := ParsePermissionLevel(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParsePermissionLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParsePermissionLevel(%q) should fail", tt.in)
		}
	}
}
