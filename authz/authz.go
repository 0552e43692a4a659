package authz

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrForbidden is the sentinel matched by errors.Is for every authorization
// denial produced by this package.
var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated principal, typically built from decoded access
// token claims.
type Actor struct {
	UserID       uuid.UUID
	Roles        []Role
	Permissions  []Permission
	DepartmentID *uuid.UUID
}

// Resource carries the ownership metadata of the object under access check.
type Resource struct {
	OwnerID      *uuid.UUID
	AssignedToID *uuid.UUID
	DepartmentID *uuid.UUID
}

// ForbiddenError reports a failed capability assertion together with the
// capability that was missing. It matches ErrForbidden under errors.Is.
type ForbiddenError struct {
	Kind       string // "permission" or "role"
	Capability string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: missing required %s: %s", e.Kind, e.Capability)
}

// Is reports whether target is ErrForbidden.
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// HasRole reports whether the role set contains r.
func HasRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// HasPermission reports whether the permission set contains p.
func HasPermission(perms []Permission, p Permission) bool {
	for _, have := range perms {
		if have == p {
			return true
		}
	}
	return false
}

// HasAccess decides resource-level access. Rules are evaluated in order,
// first match wins, otherwise deny:
//
//  1. tenant admin role: allow unconditionally
//  2. actor owns the resource: allow
//  3. resource is assigned to the actor: allow
//  4. both department ids set and equal, and actor holds tasks.read: allow
func HasAccess(actor Actor, resource Resource) bool {
	if HasRole(actor.Roles, RoleTenantAdmin) {
		return true
	}
	if resource.OwnerID != nil && *resource.OwnerID == actor.UserID {
		return true
	}
	if resource.AssignedToID != nil && *resource.AssignedToID == actor.UserID {
		return true
	}
	if actor.DepartmentID != nil && resource.DepartmentID != nil &&
		*actor.DepartmentID == *resource.DepartmentID &&
		HasPermission(actor.Permissions, PermTasksRead) {
		return true
	}
	return false
}

// RequirePermission asserts that the permission set contains p, returning a
// *ForbiddenError naming the missing permission otherwise.
func RequirePermission(perms []Permission, p Permission) error {
	if HasPermission(perms, p) {
		return nil
	}
	return &ForbiddenError{Kind: "permission", Capability: string(p)}
}

// RequireRole asserts that the role set contains r, returning a
// *ForbiddenError naming the missing role otherwise.
func RequireRole(roles []Role, r Role) error {
	if HasRole(roles, r) {
		return nil
	}
	return &ForbiddenError{Kind: "role", Capability: string(r)}
}

// RequireAccess asserts HasAccess, returning a *ForbiddenError otherwise.
func RequireAccess(actor Actor, resource Resource) error {
	if HasAccess(actor, resource) {
		return nil
	}
	return &ForbiddenError{Kind: "permission", Capability: "resource access"}
}
