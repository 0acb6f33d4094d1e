package project

import (
	"errors"
	"fmt"
	"time"
)

// ProjectStatus represents a project's lifecycle state.
type ProjectStatus string

const (
	StatusPlanning  ProjectStatus = "planning"
	StatusActive    ProjectStatus = "active"
	StatusOnHold    ProjectStatus = "on_hold"
	StatusCompleted ProjectStatus = "completed"
	StatusCancelled ProjectStatus = "cancelled"
	StatusArchived  ProjectStatus = "archived"
)

// ValidStatuses is the set of assignable project statuses.
var ValidStatuses = []ProjectStatus{
	StatusPlanning, StatusActive, StatusOnHold,
	StatusCompleted, StatusCancelled, StatusArchived,
}

// IsValidStatus returns true if the status is assignable.
func IsValidStatus(s ProjectStatus) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PermissionLevel is an ordered access tier on a single project. Higher
// levels include everything below them.
type PermissionLevel int

const (
	LevelNone      PermissionLevel = 0
	LevelViewer    PermissionLevel = 1
	LevelCommenter PermissionLevel = 2
	LevelEditor    PermissionLevel = 3
	LevelAdmin     PermissionLevel = 4
)

// String returns the level's wire name.
func (l PermissionLevel) String() string {
	switch l {
	case LevelViewer:
		return "viewer"
	case LevelCommenter:
		return "commenter"
	case LevelEditor:
		return "editor"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParsePermissionLevel converts a wire name into a PermissionLevel.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "viewer":
		return LevelViewer, nil
	case "commenter":
		return LevelCommenter, nil
	case "editor":
		return LevelEditor, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return LevelNone, fmt.Errorf("%w: unknown permission level %q", ErrValidation, s)
	}
}

// Allows reports whether this level satisfies the required level.
func (l PermissionLevel) Allows(required PermissionLevel) bool {
	return l >= required
}

// Project is a unit of work owned by exactly one company.
type Project struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedBy   string        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Permission is a user's explicit grant on one project. ExpiresAt nil means
// the grant does not expire; a past expiry makes the grant behave as absent.
type Permission struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	UserID    string          `json:"user_id"`
	Level     PermissionLevel `json:"level"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	GrantedBy string          `json:"granted_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Active reports whether the grant is usable at the given instant.
func (p *Permission) Active(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// Sentinel errors for project operations.
var (
	ErrValidation         = errors.New("validation failed")
	ErrProjectNotFound    = errors.New("project not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrAccessDenied       = errors.New("access denied")
)
