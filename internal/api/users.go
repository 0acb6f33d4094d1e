package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridocs/veridocs-core/internal/auth"
)

type updateUserRequest struct {
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Role      *auth.Role `json:"role,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
}

// canManageUsers reports whether the role may create, update, or remove
// user accounts.
func canManageUsers(role auth.Role) bool {
	return role == auth.RoleAdmin || role == auth.RoleCompanyOwner
}

// handleListUsers returns all user accounts in the caller's company.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	users, err := s.users.ListByCompany(r.Context(), claims.CompanyID)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser adds a user account to the caller's company.
//
// Only admins and company owners may invite users, and only a company
// owner may create another owner.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	if !canManageUsers(claims.Role) {
		writeForbidden(w, "only admins can create users")
		return
	}

	var req auth.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Role == auth.RoleCompanyOwner && claims.Role != auth.RoleCompanyOwner {
		writeForbidden(w, "only a company owner can create another owner")
		return
	}

	user, err := s.engine.CreateUser(r.Context(), claims.CompanyID, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "create",
		EntityType: "user",
		EntityID:   user.ID,
		NewValues:  map[string]any{"email": user.Email, "role": user.Role},
	})

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single user account in the caller's company.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || user.CompanyID != claims.CompanyID {
		// Cross-tenant lookups read as not found, same as unknown IDs
		writeNotFound(w, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser applies a partial update to a user account.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) { //nolint:gocognit,gocyclo // partial update: one branch per optional field plus role policy
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || user.CompanyID != claims.CompanyID {
		writeNotFound(w, "user not found")
		return
	}

	// Users may edit their own profile; anything beyond that needs admin
	self := user.ID == claims.Subject
	if !self && !canManageUsers(claims.Role) {
		writeForbidden(w, "only admins can update other users")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	oldValues := map[string]any{}
	newValues := map[string]any{}

	if req.FirstName != nil {
		oldValues["first_name"] = user.FirstName
		newValues["first_name"] = *req.FirstName
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		oldValues["last_name"] = user.LastName
		newValues["last_name"] = *req.LastName
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil && *req.Role != user.Role {
		if !canManageUsers(claims.Role) {
			writeForbidden(w, "only admins can change roles")
			return
		}
		if (*req.Role == auth.RoleCompanyOwner || user.Role == auth.RoleCompanyOwner) && claims.Role != auth.RoleCompanyOwner {
			writeForbidden(w, "only a company owner can manage owner roles")
			return
		}
		if !auth.IsValidRole(*req.Role) {
			writeBadRequest(w, "invalid role")
			return
		}
		oldValues["role"] = user.Role
		newValues["role"] = *req.Role
		user.Role = *req.Role
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		if !canManageUsers(claims.Role) || self {
			writeForbidden(w, "cannot change your own active status")
			return
		}
		oldValues["is_active"] = user.IsActive
		newValues["is_active"] = *req.IsActive
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if len(newValues) > 0 {
		s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
			Action:     "update",
			EntityType: "user",
			EntityID:   user.ID,
			OldValues:  oldValues,
			NewValues:  newValues,
		})
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser soft-deletes a user account. The row is retained for
// audit history and the email stays reserved.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	if !canManageUsers(claims.Role) {
		writeForbidden(w, "only admins can delete users")
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || user.CompanyID != claims.CompanyID {
		writeNotFound(w, "user not found")
		return
	}
	if user.ID == claims.Subject {
		writeBadRequest(w, "cannot delete your own account")
		return
	}
	if user.Role == auth.RoleCompanyOwner && claims.Role != auth.RoleCompanyOwner {
		writeForbidden(w, "only a company owner can delete an owner")
		return
	}

	if err := s.users.SoftDelete(r.Context(), user.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "delete",
		EntityType: "user",
		EntityID:   user.ID,
		OldValues:  map[string]any{"email": user.Email, "role": user.Role},
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
