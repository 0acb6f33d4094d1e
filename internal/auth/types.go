package auth

import (
	"errors"
	"regexp"
	"time"
)

// emailPattern is a light-weight sanity check; the store's unique indexes
// are the authoritative guard.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxEmailLength is the maximum accepted email length.
const maxEmailLength = 254

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// IsValidEmail checks if an email address has a plausible format.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// Role represents a company-wide authorisation tier.
type Role string

const (
	// RoleViewer can read content it has been granted access to. No writes.
	RoleViewer Role = "viewer"

	// RoleUser is a regular member. Access to projects comes from explicit
	// per-project grants; zero grants = no project access.
	RoleUser Role = "user"

	// RoleAdmin manages the whole company: users, projects, permissions.
	// Bypasses per-project grants.
	RoleAdmin Role = "admin"

	// RoleCompanyOwner is the account that registered the company. Everything
	// admin can do plus billing and managing other owners.
	RoleCompanyOwner Role = "company_owner"
)

// ValidRoles is the set of assignable user roles.
var ValidRoles = []Role{RoleViewer, RoleUser, RoleAdmin, RoleCompanyOwner}

// IsValidRole returns true if the role is a valid role for a user account.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// BypassesProjectGrants reports whether the role grants implicit admin-level
// access to every project in its own company.
func (r Role) BypassesProjectGrants() bool {
	return r == RoleAdmin || r == RoleCompanyOwner
}

// SubscriptionTier represents a company's billing plan.
type SubscriptionTier string

const (
	TierTrial        SubscriptionTier = "trial"
	TierBasic        SubscriptionTier = "basic"
	TierProfessional SubscriptionTier = "professional"
	TierEnterprise   SubscriptionTier = "enterprise"
)

// Trial defaults applied at registration.
const (
	// TrialDays is the length of the trial subscription window.
	TrialDays = 14

	// TrialStorageQuotaBytes is the storage quota for trial companies (10 GiB).
	TrialStorageQuotaBytes = 10 * 1024 * 1024 * 1024
)

// Company is the tenant root. Every other entity carries its ID and all
// queries are scoped by it.
type Company struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Email                string           `json:"email"`
	Phone                string           `json:"phone,omitempty"`
	SubscriptionTier     SubscriptionTier `json:"subscription_tier"`
	SubscriptionStartsAt time.Time        `json:"subscription_starts_at"`
	SubscriptionEndsAt   *time.Time       `json:"subscription_ends_at,omitempty"`
	StorageQuotaBytes    int64            `json:"storage_quota_bytes"`
	StorageUsedBytes     int64            `json:"storage_used_bytes"`
	IsActive             bool             `json:"is_active"`
	IsDeleted            bool             `json:"-"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// User is an account belonging to exactly one company. CompanyID is
// immutable after creation.
type User struct {
	ID                  string     `json:"id"`
	CompanyID           string     `json:"company_id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone,omitempty"`
	PasswordHash        string     `json:"-"` // never serialised
	Role                Role       `json:"role"`
	IsActive            bool       `json:"is_active"`
	IsDeleted           bool       `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	ResetToken          string     `json:"-"` // never serialised
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RefreshToken is a stored single-use refresh token. Only the SHA-256 hash
// of the raw token is persisted.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FamilyID  string    `json:"family_id"`
	TokenHash string    `json:"-"` // never serialised
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is the sanitised user representation returned by auth
// operations. It never carries the password hash.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}

// CompanySummary is the sanitised company representation returned by auth
// operations.
type CompanySummary struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
}

// TokenBundle is returned on successful registration, login, and refresh.
type TokenBundle struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         UserSummary    `json:"user"`
	Company      CompanySummary `json:"company"`
}

// Summary returns the sanitised representation of a user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}

// Summary returns the sanitised representation of a company.
func (c *Company) Summary() CompanySummary {
	return CompanySummary{
		ID:               c.ID,
		Name:             c.Name,
		SubscriptionTier: c.SubscriptionTier,
	}
}

// Sentinel errors for auth operations.
//
// ErrInvalidCredentials carries one message for every login failure mode
// (unknown email, wrong password, inactive user, inactive company) so that
// responses cannot be used to enumerate accounts.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCompanyEmailExists = errors.New("company email already registered")
	ErrUserEmailExists    = errors.New("user email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
	ErrForbidden          = errors.New("insufficient permissions")
)
