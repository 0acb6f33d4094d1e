package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veridocs/veridocs-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// changePasswordRequest is the request body for POST /auth/change-password.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleRegister provisions a new company with its owner account and logs
// the owner in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	bundle, err := s.engine.Register(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, bundle.Company.ID, bundle.User.ID, auditEntry{
		Action:     "register",
		EntityType: "company",
		EntityID:   bundle.Company.ID,
		NewValues:  map[string]any{"name": bundle.Company.Name},
	})

	writeJSON(w, http.StatusCreated, bundle)
}

// handleLogin authenticates a user and returns a token pair. Every failure
// mode gets the same 401 so responses cannot be used to probe for accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	bundle, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, auth.ErrInvalidCredentials.Error())
			return
		}
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, bundle.Company.ID, bundle.User.ID, auditEntry{
		Action:     "login",
		EntityType: "user",
		EntityID:   bundle.User.ID,
	})

	writeJSON(w, http.StatusOK, bundle)
}

// handleRefresh exchanges a refresh token for a new token pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	bundle, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// handleLogout revokes the caller's refresh token family.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "logout",
		EntityType: "user",
		EntityID:   claims.Subject,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleValidate checks an access token and reports whether it is valid.
// Used by sibling services that need to verify tokens without sharing the
// signing secret.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims, err := s.engine.ValidateAccessToken(req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      true,
		"user_id":    claims.Subject,
		"company_id": claims.CompanyID,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt,
	})
}

// handleMe returns the authenticated user's profile and company.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	company, err := s.companies.GetByID(r.Context(), user.CompanyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"company": company,
	})
}

// handleChangePassword updates the caller's password and revokes all of
// their refresh tokens.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.engine.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "update",
		EntityType: "user",
		EntityID:   claims.Subject,
		NewValues:  map[string]any{"password": "changed"},
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}
