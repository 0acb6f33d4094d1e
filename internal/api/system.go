package api

import (
	"encoding/json"
	"net/http"

	"github.com/veridocs/veridocs-core/internal/auth"
)

// resetRequest defines the options for a development data reset.
type resetRequest struct {
	ClearDocuments bool   `json:"clear_documents"`
	ClearProjects  bool   `json:"clear_projects"`
	ClearAuditLogs bool   `json:"clear_audit_logs"`
	Confirm        string `json:"confirm"`
}

// resetResponse reports what was deleted.
type resetResponse struct {
	Status  string         `json:"status"`
	Deleted map[string]int `json:"deleted"`
}

// handleSystemReset clears selected data for the caller's company in a
// single transaction. Available only in development mode and only to a
// company owner.
//
// This is a destructive operation, so the request must include an exact
// confirmation string as a safety guard.
func (s *Server) handleSystemReset(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // sequential table wipes with per-step error reporting
	if !s.devMode {
		writeNotFound(w, "not found")
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	if claims.Role != auth.RoleCompanyOwner {
		writeForbidden(w, "only a company owner can reset data")
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Safety guard: require exact confirmation string.
	if req.Confirm != "RESET COMPANY DATA" {
		writeBadRequest(w, `confirm field must be exactly "RESET COMPANY DATA"`)
		return
	}

	if !req.ClearDocuments && !req.ClearProjects && !req.ClearAuditLogs {
		writeBadRequest(w, "at least one clear_* option must be true")
		return
	}

	ctx := r.Context()
	deleted := make(map[string]int)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("data reset: failed to begin transaction", "error", err)
		writeInternalError(w, "failed to begin transaction")
		return
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	// Helper to execute a company-scoped DELETE and record the count.
	deleteFrom := func(table string) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE company_id = ?", claims.CompanyID)
		if err != nil {
			return err
		}
		n, _ := result.RowsAffected()
		deleted[table] = int(n)
		return nil
	}

	// Documents first: they reference projects and hold the storage charge.
	if req.ClearDocuments || req.ClearProjects {
		if err := deleteFrom("documents"); err != nil {
			s.logger.Error("data reset: failed to clear documents", "error", err)
			writeInternalError(w, "failed to clear documents")
			return
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE companies SET storage_used_bytes = 0 WHERE id = ?", claims.CompanyID); err != nil {
			s.logger.Error("data reset: failed to reset storage counter", "error", err)
			writeInternalError(w, "failed to reset storage counter")
			return
		}
	}

	// Projects cascade their permission grants.
	if req.ClearProjects {
		if err := deleteFrom("projects"); err != nil {
			s.logger.Error("data reset: failed to clear projects", "error", err)
			writeInternalError(w, "failed to clear projects")
			return
		}
	}

	if req.ClearAuditLogs {
		if err := deleteFrom("audit_logs"); err != nil {
			s.logger.Error("data reset: failed to clear audit logs", "error", err)
			writeInternalError(w, "failed to clear audit logs")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("data reset: failed to commit transaction", "error", err)
		writeInternalError(w, "failed to commit data reset")
		return
	}

	s.logger.Info("company data reset committed",
		"company_id", claims.CompanyID,
		"deleted", deleted,
	)

	writeJSON(w, http.StatusOK, resetResponse{
		Status:  "ok",
		Deleted: deleted,
	})
}
