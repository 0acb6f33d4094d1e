// Package project implements company-scoped projects and the per-project
// permission model.
//
// Access follows a "zero access by default, grant explicitly" model: a
// regular user with no grant on a project cannot touch it. Grants carry an
// ordered permission level (viewer < commenter < editor < admin) and an
// optional expiry; an expired grant behaves exactly like a missing one.
// Company admins and owners bypass grants inside their own company, but the
// tenant boundary is checked first and is never bypassed.
package project
