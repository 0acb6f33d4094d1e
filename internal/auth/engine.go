package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veridocs/veridocs-core/internal/infrastructure/logging"
)

// EngineConfig carries the token settings the engine needs.
type EngineConfig struct {
	JWTSecret       string
	AccessTokenTTL  int // minutes
	RefreshTokenTTL int // days
}

// Engine implements the authentication flows: company registration, login,
// token refresh, and logout. It owns the multi-step transactions that the
// repositories alone cannot express.
type Engine struct {
	db        *sql.DB
	companies CompanyRepository
	users     UserRepository
	tokens    TokenRepository
	cfg       EngineConfig
	logger    *logging.Logger

	// dummyHash is verified against on login when the email is unknown, so
	// that branch costs the same argon2 work as a real password check.
	dummyHash string
}

// NewEngine creates an authentication engine. The raw *sql.DB is needed for
// the registration transaction that spans companies and users.
func NewEngine(db *sql.DB, companies CompanyRepository, users UserRepository, tokens TokenRepository, cfg EngineConfig, logger *logging.Logger) *Engine {
	dummyHash, err := HashPassword("unknown-account-placeholder")
	if err != nil {
		// rand.Read failing means the process cannot do crypto at all
		panic(fmt.Sprintf("hashing login placeholder: %v", err))
	}

	return &Engine{
		db:        db,
		companies: companies,
		users:     users,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger.With("component", "auth"),
		dummyHash: dummyHash,
	}
}

// RegisterRequest carries the fields needed to provision a new company
// together with its owner account.
type RegisterRequest struct {
	CompanyName  string `json:"company_name"`
	CompanyEmail string `json:"company_email"`
	CompanyPhone string `json:"company_phone,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Password     string `json:"password"`
}

// Validate checks the registration request fields.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return fmt.Errorf("%w: company name is required", ErrValidation)
	}
	if !IsValidEmail(r.CompanyEmail) {
		return fmt.Errorf("%w: company email is invalid", ErrValidation)
	}
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if !IsValidEmail(r.Email) {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// Register provisions a new company and its owner account in a single
// transaction: either both rows exist afterwards or neither does. The new
// company starts on a trial subscription and the owner is logged in
// immediately.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*TokenBundle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Pre-flight uniqueness checks give precise conflict errors. The unique
	// indexes stay authoritative under concurrency.
	if _, err := e.companies.GetByEmail(ctx, req.CompanyEmail); err == nil {
		return nil, ErrCompanyEmailExists
	} else if !errors.Is(err, ErrCompanyNotFound) {
		return nil, err
	}
	if _, err := e.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, TrialDays)
	company := &Company{
		Name:                 strings.TrimSpace(req.CompanyName),
		Email:                req.CompanyEmail,
		Phone:                strings.TrimSpace(req.CompanyPhone),
		SubscriptionTier:     TierTrial,
		SubscriptionStartsAt: now,
		SubscriptionEndsAt:   &trialEnd,
		StorageQuotaBytes:    TrialStorageQuotaBytes,
		IsActive:             true,
	}
	owner := &User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         RoleCompanyOwner,
		IsActive:     true,
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning registration transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if err := insertCompany(ctx, tx, company); err != nil {
		return nil, err
	}
	owner.CompanyID = company.ID
	if err := insertUser(ctx, tx, owner); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	e.logger.Info("company registered",
		"company_id", company.ID,
		"owner_id", owner.ID,
	)

	return e.issueTokens(ctx, owner, company, "")
}

// Login verifies credentials and issues a fresh token pair. Every failure
// mode returns ErrInvalidCredentials so responses cannot be used to probe
// for registered accounts.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenBundle, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same hashing cost as a real check so response
			// timing does not separate unknown emails from bad passwords.
			_, _ = VerifyPassword(password, e.dummyHash) //nolint:errcheck
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	company, err := e.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !company.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := e.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		e.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	e.logger.Info("user logged in", "user_id", user.ID, "company_id", user.CompanyID)

	return e.issueTokens(ctx, user, company, "")
}

// Refresh exchanges a valid refresh token for a new token pair. The consumed
// token is rotated within its family; presenting an already revoked token is
// treated as theft and revokes the whole family.
func (e *Engine) Refresh(ctx context.Context, rawRefreshToken string) (*TokenBundle, error) {
	stored, err := e.tokens.GetByTokenHash(ctx, HashToken(rawRefreshToken))
	if err != nil {
		return nil, err
	}

	if stored.Revoked {
		if err := e.tokens.RevokeFamily(ctx, stored.FamilyID); err != nil {
			e.logger.Error("failed to revoke token family", "family_id", stored.FamilyID, "error", err)
		}
		e.logger.Warn("refresh token reuse detected", "user_id", stored.UserID, "family_id", stored.FamilyID)
		return nil, ErrTokenReuse
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := e.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	company, err := e.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !company.IsActive {
		return nil, ErrInvalidCredentials
	}

	return e.refreshTokens(ctx, user, company, stored)
}

// Logout revokes the refresh token family so the session cannot be resumed.
// Unknown tokens are a no-op: logout always succeeds from the client's view.
func (e *Engine) Logout(ctx context.Context, rawRefreshToken string) error {
	stored, err := e.tokens.GetByTokenHash(ctx, HashToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return nil
		}
		return err
	}
	return e.tokens.RevokeFamily(ctx, stored.FamilyID)
}

// ValidateAccessToken checks an access token's signature and expiry and
// returns its claims.
func (e *Engine) ValidateAccessToken(tokenString string) (*CustomClaims, error) {
	return ParseToken(tokenString, e.cfg.JWTSecret)
}

// CreateUserRequest carries the fields for adding a user to an existing
// company.
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Password  string `json:"password"`
	Role      Role   `json:"role"`
}

// Validate checks the user creation request fields.
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if !IsValidEmail(r.Email) {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if !IsValidRole(r.Role) {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, r.Role)
	}
	return nil
}

// CreateUser adds a user account to a company. Role policy (who may assign
// which role) is enforced by the caller; the engine only validates and
// persists.
func (e *Engine) CreateUser(ctx context.Context, companyID string, req CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := e.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		CompanyID:    companyID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := e.users.Create(ctx, user); err != nil {
		return nil, err
	}

	e.logger.Info("user created", "user_id", user.ID, "company_id", companyID, "role", user.Role)
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every outstanding refresh token for the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := e.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := e.tokens.RevokeAllForUser(ctx, userID); err != nil {
		e.logger.Error("failed to revoke tokens after password change", "user_id", userID, "error", err)
	}

	e.logger.Info("password changed", "user_id", userID)
	return nil
}

// issueTokens creates a fresh refresh token family plus an access token.
// familyID is empty for a new session; rotation passes the existing family.
func (e *Engine) issueTokens(ctx context.Context, user *User, company *Company, familyID string) (*TokenBundle, error) {
	access, expiresAt, err := GenerateAccessToken(user, e.cfg.JWTSecret, e.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refresh := &RefreshToken{
		UserID:    user.ID,
		FamilyID:  familyID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().UTC().AddDate(0, 0, e.cfg.RefreshTokenTTL),
	}
	if err := e.tokens.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenBundle{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
		User:         user.Summary(),
		Company:      company.Summary(),
	}, nil
}

// refreshTokens rotates the consumed refresh token and issues a new access
// token.
func (e *Engine) refreshTokens(ctx context.Context, user *User, company *Company, consumed *RefreshToken) (*TokenBundle, error) {
	access, expiresAt, err := GenerateAccessToken(user, e.cfg.JWTSecret, e.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	next := &RefreshToken{
		UserID:    user.ID,
		FamilyID:  consumed.FamilyID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().UTC().AddDate(0, 0, e.cfg.RefreshTokenTTL),
	}
	if err := e.tokens.RotateRefreshToken(ctx, consumed.ID, next); err != nil {
		return nil, err
	}

	return &TokenBundle{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
		User:         user.Summary(),
		Company:      company.Summary(),
	}, nil
}
