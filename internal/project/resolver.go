package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veridocs/veridocs-core/internal/auth"
)

// Actor is the authenticated identity an authorization decision is made for,
// as carried by the access token claims.
type Actor struct {
	UserID    string
	CompanyID string
	Role      auth.Role
}

// Resolver answers "may this actor do X on this project". Decisions are
// evaluated in a fixed order:
//
//  1. tenant boundary: a project outside the actor's company is denied,
//     regardless of role
//  2. role bypass: company admins and owners act on any project in their
//     own company
//  3. explicit grant: missing or expired grants deny
//  4. level ordering: the grant's level must satisfy the required level
type Resolver struct {
	projects Repository
	grants   PermissionRepository
}

// NewResolver creates a permission resolver.
func NewResolver(projects Repository, grants PermissionRepository) *Resolver {
	return &Resolver{projects: projects, grants: grants}
}

// Authorize checks whether the actor may act on the project at the required
// level. Returns the project on success so handlers avoid a second lookup.
func (r *Resolver) Authorize(ctx context.Context, actor Actor, projectID string, required PermissionLevel) (*Project, error) {
	p, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Tenant boundary comes first and has no bypass.
	if p.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("%w: project belongs to another company", ErrAccessDenied)
	}

	if actor.Role.BypassesProjectGrants() {
		return p, nil
	}

	grant, err := r.grants.Get(ctx, projectID, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return nil, fmt.Errorf("%w: no grant on project", ErrAccessDenied)
		}
		return nil, err
	}

	if !grant.Active(time.Now()) {
		return nil, fmt.Errorf("%w: grant has expired", ErrAccessDenied)
	}

	if !grant.Level.Allows(required) {
		return nil, fmt.Errorf("%w: %s access required, have %s", ErrAccessDenied, required, grant.Level)
	}

	return p, nil
}

// EffectiveLevel reports the actor's effective permission level on a
// project: admin for bypass roles, the active grant's level otherwise, and
// none when no usable grant exists. Tenant mismatches are none as well.
func (r *Resolver) EffectiveLevel(ctx context.Context, actor Actor, projectID string) (PermissionLevel, error) {
	p, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return LevelNone, err
	}
	if p.CompanyID != actor.CompanyID {
		return LevelNone, nil
	}
	if actor.Role.BypassesProjectGrants() {
		return LevelAdmin, nil
	}

	grant, err := r.grants.Get(ctx, projectID, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return LevelNone, nil
		}
		return LevelNone, err
	}
	if !grant.Active(time.Now()) {
		return LevelNone, nil
	}
	return grant.Level, nil
}
