package authz

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestHasAccessRuleOrder(t *testing.T) {
	owner := uuid.New()
	assignee := uuid.New()
	stranger := uuid.New()
	deptA := uuid.New()
	deptB := uuid.New()

	tests := []struct {
		name     string
		actor    Actor
		resource Resource
		want     bool
	}{
		{
			name:     "tenant admin bypasses ownership",
			actor:    Actor{UserID: stranger, Roles: []Role{RoleTenantAdmin}},
			resource: Resource{OwnerID: ptr(owner), DepartmentID: ptr(deptA)},
			want:     true,
		},
		{
			name:     "system admin without tenant admin role is not bypassed",
			actor:    Actor{UserID: stranger, Roles: []Role{RoleSystemAdmin}},
			resource: Resource{OwnerID: ptr(owner)},
			want:     false,
		},
		{
			name:     "owner always granted",
			actor:    Actor{UserID: owner, Roles: []Role{RoleGuest}},
			resource: Resource{OwnerID: ptr(owner)},
			want:     true,
		},
		{
			name:     "assignee granted",
			actor:    Actor{UserID: assignee},
			resource: Resource{OwnerID: ptr(owner), AssignedToID: ptr(assignee)},
			want:     true,
		},
		{
			name: "same department with read permission granted",
			actor: Actor{
				UserID:       stranger,
				Permissions:  []Permission{PermTasksRead},
				DepartmentID: ptr(deptA),
			},
			resource: Resource{OwnerID: ptr(owner), DepartmentID: ptr(deptA)},
			want:     true,
		},
		{
			name: "same department without read permission denied",
			actor: Actor{
				UserID:       stranger,
				Permissions:  []Permission{PermTasksCreate},
				DepartmentID: ptr(deptA),
			},
			resource: Resource{OwnerID: ptr(owner), DepartmentID: ptr(deptA)},
			want:     false,
		},
		{
			name: "disjoint department denied",
			actor: Actor{
				UserID:       stranger,
				Permissions:  []Permission{PermTasksRead},
				DepartmentID: ptr(deptA),
			},
			resource: Resource{OwnerID: ptr(owner), DepartmentID: ptr(deptB)},
			want:     false,
		},
		{
			name:     "nil departments never match",
			actor:    Actor{UserID: stranger, Permissions: []Permission{PermTasksRead}},
			resource: Resource{OwnerID: ptr(owner)},
			want:     false,
		},
		{
			name:     "non-owner non-assignee denied",
			actor:    Actor{UserID: stranger, Roles: []Role{RoleMember}},
			resource: Resource{OwnerID: ptr(owner), AssignedToID: ptr(assignee)},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAccess(tt.actor, tt.resource); got != tt.want {
				t.Fatalf("HasAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	perms := []Permission{PermTasksRead, PermTasksCreate}

	if err := RequirePermission(perms, PermTasksRead); err != nil {
		t.Fatalf("expected grant, got %v", err)
	}

	err := RequirePermission(perms, PermTasksDelete)
	if err == nil {
		t.Fatal("expected denial for missing permission")
	}
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	if forbidden.Capability != string(PermTasksDelete) {
		t.Fatalf("expected missing capability %q, got %q", PermTasksDelete, forbidden.Capability)
	}
}

func TestRequireRole(t *testing.T) {
	roles := []Role{RoleMember}

	if err := RequireRole(roles, RoleMember); err != nil {
		t.Fatalf("expected grant, got %v", err)
	}

	err := RequireRole(roles, RoleTenantAdmin)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) || forbidden.Kind != "role" {
		t.Fatalf("expected role denial, got %v", err)
	}
}

func TestDefaultGrantCopies(t *testing.T) {
	grant := DefaultGrant(RoleMember)
	if len(grant) != 2 || grant[0] != PermTasksRead || grant[1] != PermTasksCreate {
		t.Fatalf("unexpected member grant: %v", grant)
	}

	grant[0] = PermTenantConfigure
	if DefaultPermissions[RoleMember][0] != PermTasksRead {
		t.Fatal("DefaultGrant must not alias the policy table")
	}
}
