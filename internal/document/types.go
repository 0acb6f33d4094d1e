package document

import (
	"errors"
	"time"
)

// Type categorises a document for filtering and retention rules.
type Type string

const (
	TypeContract       Type = "contract"
	TypeBrief          Type = "brief"
	TypeCorrespondence Type = "correspondence"
	TypeEvidence       Type = "evidence"
	TypeFiling         Type = "filing"
	TypeOther          Type = "other"
)

// ValidTypes is the set of assignable document types.
var ValidTypes = []Type{
	TypeContract, TypeBrief, TypeCorrespondence,
	TypeEvidence, TypeFiling, TypeOther,
}

// IsValidType returns true if the type is assignable.
func IsValidType(t Type) bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Document is one immutable version row in a chain. RootID groups the chain,
// ParentDocumentID links to the previous version, and exactly one row per
// chain carries IsLatestVersion.
type Document struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	CompanyID        string    `json:"company_id"`
	RootID           string    `json:"root_id"`
	ParentDocumentID string    `json:"parent_document_id,omitempty"`
	Title            string    `json:"title"`
	FileName         string    `json:"file_name"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type,omitempty"`
	ContentHash      string    `json:"content_hash,omitempty"`
	DocumentType     Type      `json:"document_type"`
	Version          int       `json:"version"`
	IsLatestVersion  bool      `json:"is_latest_version"`
	CreatedBy        string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Sentinel errors for document operations.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("document not found")
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrVersionConflict = errors.New("version conflict")
)
