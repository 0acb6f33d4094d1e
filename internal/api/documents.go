package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridocs/veridocs-core/internal/auth"
	"github.com/veridocs/veridocs-core/internal/document"
	"github.com/veridocs/veridocs-core/internal/project"
)

type createDocumentRequest struct {
	Title        string        `json:"title"`
	FileName     string        `json:"file_name"`
	FileSize     int64         `json:"file_size"`
	ContentType  string        `json:"content_type,omitempty"`
	ContentHash  string        `json:"content_hash,omitempty"`
	DocumentType document.Type `json:"document_type,omitempty"`
}

// handleListDocuments returns the latest version of every document chain in
// a project. Requires viewer access.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelViewer)
	if err != nil {
		return
	}

	docs, err := s.documents.ListByProject(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("list documents failed", "project_id", p.ID, "error", err)
		writeInternalError(w, "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// handleCreateDocument registers a new document chain in a project.
// Requires editor access; the upload is charged against the company's
// storage quota.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	p, err := s.authorizeProject(w, r, claims, chi.URLParam(r, "id"), project.LevelEditor)
	if err != nil {
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := &document.Document{
		ProjectID:    p.ID,
		CompanyID:    claims.CompanyID,
		Title:        req.Title,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		ContentType:  req.ContentType,
		ContentHash:  req.ContentHash,
		DocumentType: req.DocumentType,
		CreatedBy:    claims.Subject,
	}
	if err := s.documents.Create(r.Context(), d); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "create",
		EntityType: "document",
		EntityID:   d.ID,
		NewValues:  map[string]any{"title": d.Title, "project_id": p.ID},
	})

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDocument returns one document version. Requires viewer access on
// the owning project.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	d, err := s.authorizeDocument(w, r, claims, chi.URLParam(r, "id"), project.LevelViewer)
	if err != nil {
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleListVersions returns a document's full version chain, oldest first.
// Requires viewer access on the owning project.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	d, err := s.authorizeDocument(w, r, claims, chi.URLParam(r, "id"), project.LevelViewer)
	if err != nil {
		return
	}

	versions, err := s.documents.ListVersions(r.Context(), d.RootID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"versions": versions,
		"count":    len(versions),
	})
}

// handleCreateVersion appends a new version to a document's chain.
// Requires editor access on the owning project.
func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	existing, err := s.authorizeDocument(w, r, claims, chi.URLParam(r, "id"), project.LevelEditor)
	if err != nil {
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := &document.Document{
		Title:        req.Title,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		ContentType:  req.ContentType,
		ContentHash:  req.ContentHash,
		DocumentType: req.DocumentType,
		CreatedBy:    claims.Subject,
	}
	if err := s.documents.CreateVersion(r.Context(), existing.RootID, d); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "update",
		EntityType: "document",
		EntityID:   d.ID,
		OldValues:  map[string]any{"version": existing.Version},
		NewValues:  map[string]any{"version": d.Version, "title": d.Title},
	})

	writeJSON(w, http.StatusCreated, d)
}

// handleDeleteDocument removes a document's whole version chain and refunds
// its storage. Requires admin access on the owning project.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	d, err := s.authorizeDocument(w, r, claims, chi.URLParam(r, "id"), project.LevelAdmin)
	if err != nil {
		return
	}

	if err := s.documents.DeleteChain(r.Context(), d.RootID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, claims.CompanyID, claims.Subject, auditEntry{
		Action:     "delete",
		EntityType: "document",
		EntityID:   d.RootID,
		OldValues:  map[string]any{"title": d.Title, "versions_up_to": d.Version},
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// authorizeDocument loads a document and checks the caller's access to its
// owning project. On failure it writes the error response and returns a
// non-nil error so the handler can bail out.
func (s *Server) authorizeDocument(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims, docID string, required project.PermissionLevel) (*document.Document, error) {
	d, err := s.documents.GetByID(r.Context(), docID)
	if err != nil || d.CompanyID != claims.CompanyID {
		// Cross-tenant lookups read as not found, same as unknown IDs
		writeNotFound(w, "document not found")
		return nil, document.ErrNotFound
	}

	if _, err := s.resolver.Authorize(r.Context(), actorFromClaims(claims), d.ProjectID, required); err != nil {
		s.writeDomainError(w, r, err)
		return nil, err
	}

	return d, nil
}
