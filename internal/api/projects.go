package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veridocs/veridocs-core/internal/auth"
	"github.com/veridocs/veridocs-core/internal/project"
)

type createProjectRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Status      project.ProjectStatus `json:"status,omitempty"`
}

type updateProjectRequest struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Status      *project.ProjectStatus `json:"status,omitempty"`
}

type grantPermissionRequest struct {
	UserID    string     `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	Level     string     `json:"level"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// authorizeProject checks the caller's access to a project and writes the
// error response on failure. Projects in other companies read as not found,
// same as unknown IDs, so responses cannot leak existence across tenants.
func (s *Server) authorizeProject(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims, projectID string, required project.PermissionLevel) (*project.Project, error) {
	p, err := s.projects.GetByID(r.Context(), projectID)
	if err != nil || p.CompanyID != claims.CompanyID {
		writeNotFound(w, "project not found")
		return nil, project.ErrProjectNotFound
	}

	if _, err := s.resolver.Authorize(r.Context(), actorFromClaims(claims), projectID, required); err != nil {
		s.writeDomainError(w, r, err)
		return nil, err
	}

	return p, nil
}

// handleListProjects returns the projects visible to the caller. Admins and
// owners see every project in the company; everyone else sees only projects
// they hold an active grant on.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	projects, err := s.projects.ListByCompany(r.Context(), claims.CompanyID)
	if err != nil {
		s.logger.Error("list projects failed", "error", err)
		writeInternalError(w, "failed to list projects")
		return
	}

	if !claims.Role.BypassesProjectGrants() {
		grants, err := s.grants.ListByUser(r.Context(), claims.Subject)
		if err != nil {
			s.logger.Error("list grants failed", "error", err)
			writeInternalError(w, "failed to list projects")
			return
		}
		now := time.Now()
		visible := make(map[string]bool, len(grants))
		for i := range grants {
			if grants[i].Active(now) {
				visible[grants[i].ProjectID] = true
			}
		}
		filtered := make([]project.Project, 0, len(visible))
		for _, p := range projects {
			if visible[p.ID] {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"count":    len(projects),
	})
}

// handleCreateProject creates a project in the caller's company. The creator
// receives an admin grant on it so non-admin users can manage what they
// created.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &project.Project{
		CompanyID:   claims.CompanyID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   claims.Subject,
	}
	if err := s.projects.Create(r.Context(), p); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.grants.Grant(r.Context(), &project.Permission{
		ProjectID: p.ID,
		UserID:    claims.Subject,
		Level:     project.LevelAdmin,
		GrantedBy: claims.Subject,
	}); err != nil {
		s.logger.Error("failed to grant creator access", "project_id", p.ID, "error", err)
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "create",
		EntityType: "project",
		EntityID:   p.ID,
		NewValues:  map[string]any{"name": p.Name, "status": p.Status},
	})

	writeJSON(w, http.StatusCreated, p)
}

// handleGetProject returns one project together with the caller's effective
// access level on it. Requires viewer access.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelViewer)
	if err != nil {
		return
	}

	level, err := s.resolver.EffectiveLevel(r.Context(), actorFromClaims(claims), p.ID)
	if err != nil {
		s.logger.Error("resolving access level failed", "project_id", p.ID, "error", err)
		writeInternalError(w, "failed to get project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project":      p,
		"access_level": level.String(),
	})
}

// handleUpdateProject applies a partial update. Requires editor access.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelEditor)
	if err != nil {
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	oldValues := map[string]any{}
	newValues := map[string]any{}

	if req.Name != nil {
		oldValues["name"] = p.Name
		newValues["name"] = *req.Name
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil && *req.Status != p.Status {
		if !project.IsValidStatus(*req.Status) {
			writeBadRequest(w, "invalid project status")
			return
		}
		oldValues["status"] = p.Status
		newValues["status"] = *req.Status
		p.Status = *req.Status
	}

	if err := s.projects.Update(r.Context(), p); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if len(newValues) > 0 {
		s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
			Action:     "update",
			EntityType: "project",
			EntityID:   p.ID,
			OldValues:  oldValues,
			NewValues:  newValues,
		})
	}

	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProject removes a project and its grants. Requires admin
// access on the project.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelAdmin)
	if err != nil {
		return
	}

	if err := s.projects.Delete(r.Context(), p.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "delete",
		EntityType: "project",
		EntityID:   p.ID,
		OldValues:  map[string]any{"name": p.Name},
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// handleListPermissions returns the access grants on a project. Requires
// admin access on the project.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelAdmin)
	if err != nil {
		return
	}

	perms, err := s.grants.ListByProject(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("list permissions failed", "project_id", p.ID, "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": perms,
		"count":       len(perms),
	})
}

// handleGrantPermission creates or replaces a user's grant on a project.
// Requires admin access on the project; the grantee must belong to the
// same company.
func (s *Server) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelAdmin)
	if err != nil {
		return
	}

	var req grantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	level, err := project.ParsePermissionLevel(req.Level)
	if err != nil {
		writeBadRequest(w, "invalid permission level")
		return
	}

	// The grantee can be named by id or by email. The email lookup is
	// scoped to the caller's company, so either path stays inside the
	// tenant boundary.
	var grantee *auth.User
	switch {
	case req.UserID != "":
		grantee, err = s.users.GetByID(r.Context(), req.UserID)
		if err == nil && grantee.CompanyID != claims.CompanyID {
			err = auth.ErrUserNotFound
		}
	case req.Email != "":
		grantee, err = s.users.GetByEmailInCompany(r.Context(), claims.CompanyID, req.Email)
	default:
		writeBadRequest(w, "user_id or email is required")
		return
	}
	if err != nil {
		writeNotFound(w, "user not found")
		return
	}

	perm := &project.Permission{
		ProjectID: p.ID,
		UserID:    grantee.ID,
		Level:     level,
		ExpiresAt: req.ExpiresAt,
		GrantedBy: claims.Subject,
	}
	if err := s.grants.Grant(r.Context(), perm); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "update",
		EntityType: "project",
		EntityID:   p.ID,
		NewValues:  map[string]any{"grant_user": grantee.ID, "grant_level": level.String()},
	})

	writeJSON(w, http.StatusOK, perm)
}

// handleRevokePermission removes a user's grant on a project. Requires
// admin access on the project.
func (s *Server) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelAdmin)
	if err != nil {
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := s.grants.Revoke(r.Context(), p.ID, userID); err != nil {
		if errors.Is(err, project.ErrPermissionNotFound) {
			writeNotFound(w, "permission not found")
			return
		}
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "update",
		EntityType: "project",
		EntityID:   p.ID,
		OldValues:  map[string]any{"grant_user": userID},
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}
