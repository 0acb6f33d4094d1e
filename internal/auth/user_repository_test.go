package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, company.ID, "Alice@Example.com", RoleUser)

	if user.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	got, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email should be stored lowercase, got %q", got.Email)
	}
	if got.CompanyID != company.ID {
		t.Errorf("CompanyID = %q, want %q", got.CompanyID, company.ID)
	}
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, RoleUser)
	}
}

func TestUserRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, company.ID, "bob@example.com", RoleUser)

	got, err := repo.GetByEmail(context.Background(), "BOB@Example.COM")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("GetByEmail() returned %q, want %q", got.ID, user.ID)
	}
}

func TestUserRepository_DuplicateEmailInCompany(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	seedTestUser(t, db, company.ID, "dup@example.com", RoleUser)

	err := repo.Create(context.Background(), &User{
		CompanyID:    company.ID,
		FirstName:    "Dup",
		LastName:     "User",
		Email:        "DUP@example.com",
		PasswordHash: "$argon2id$fake",
		Role:         RoleUser,
		IsActive:     true,
	})
	if !errors.Is(err, ErrUserEmailExists) {
		t.Errorf("duplicate email should return ErrUserEmailExists, got %v", err)
	}
}

func TestUserRepository_ListByCompany_Scoped(t *testing.T) {
	db := testDB(t)
	companyA := seedTestCompany(t, db, "Firm A", "a@example.com")
	companyB := seedTestCompany(t, db, "Firm B", "b@example.com")
	repo := NewUserRepository(db)

	seedTestUser(t, db, companyA.ID, "a1@example.com", RoleUser)
	seedTestUser(t, db, companyA.ID, "a2@example.com", RoleAdmin)
	seedTestUser(t, db, companyB.ID, "b1@example.com", RoleUser)

	users, err := repo.ListByCompany(context.Background(), companyA.ID)
	if err != nil {
		t.Fatalf("ListByCompany() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListByCompany() returned %d users, want 2", len(users))
	}
	for _, u := range users {
		if u.CompanyID != companyA.ID {
			t.Errorf("user %s belongs to %s, expected %s", u.ID, u.CompanyID, companyA.ID)
		}
	}
}

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, company.ID, "login@example.com", RoleUser)
	if user.LastLoginAt != nil {
		t.Fatal("new user should have no last login")
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpdateLastLogin(context.Background(), user.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, at)
	}
}

func TestUserRepository_SoftDelete(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, company.ID, "gone@example.com", RoleUser)

	if err := repo.SoftDelete(context.Background(), user.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	if _, err := repo.GetByID(context.Background(), user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("deleted user should be ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(context.Background(), "gone@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("deleted user should not resolve by email, got %v", err)
	}

	// Double delete reports not found
	if err := repo.SoftDelete(context.Background(), user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second SoftDelete() should be ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := testDB(t)
	company := seedTestCompany(t, db, "Acme Legal", "acme@example.com")
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, company.ID, "edit@example.com", RoleUser)
	user.FirstName = "Edited"
	user.Role = RoleAdmin
	user.IsActive = false

	if err := repo.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FirstName != "Edited" || got.Role != RoleAdmin || got.IsActive {
		t.Errorf("Update() not persisted: %+v", got)
	}
}
