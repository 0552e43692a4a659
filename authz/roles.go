package authz

// Role is a coarse-grained job function scoped to one tenant.
type Role string

const (
	RoleSystemAdmin    Role = "SYSTEM_ADMIN"
	RoleTenantAdmin    Role = "TENANT_ADMIN"
	RoleDepartmentHead Role = "DEPARTMENT_HEAD"
	RoleProjectManager Role = "PROJECT_MANAGER"
	RoleTeamLead       Role = "TEAM_LEAD"
	RoleMember         Role = "MEMBER"
	RoleGuest          Role = "GUEST"
)

// Permission is a fine-grained capability. Checks operate on the stored
// permission set only; roles never expand into permissions implicitly.
type Permission string

const (
	PermTasksRead       Permission = "tasks.read"
	PermTasksCreate     Permission = "tasks.create"
	PermTasksUpdate     Permission = "tasks.update"
	PermTasksDelete     Permission = "tasks.delete"
	PermTasksAssign     Permission = "tasks.assign"
	PermReportsView     Permission = "reports.view"
	PermUsersManage     Permission = "users.manage"
	PermTenantConfigure Permission = "tenant.configure"
)

// DefaultPermissions is the grant policy applied when an account is created
// with a given role. Permissions are copied onto the user record at creation
// time; later role changes do not retroactively rewrite the set.
var DefaultPermissions = map[Role][]Permission{
	RoleSystemAdmin: {
		PermTasksRead, PermTasksCreate, PermTasksUpdate, PermTasksDelete,
		PermTasksAssign, PermReportsView, PermUsersManage, PermTenantConfigure,
	},
	RoleTenantAdmin: {
		PermTasksRead, PermTasksCreate, PermTasksUpdate, PermTasksDelete,
		PermTasksAssign, PermReportsView, PermUsersManage, PermTenantConfigure,
	},
	RoleDepartmentHead: {
		PermTasksRead, PermTasksCreate, PermTasksUpdate, PermTasksAssign,
		PermReportsView,
	},
	RoleProjectManager: {
		PermTasksRead, PermTasksCreate, PermTasksUpdate, PermTasksAssign,
	},
	RoleTeamLead: {
		PermTasksRead, PermTasksCreate, PermTasksUpdate,
	},
	RoleMember: {
		PermTasksRead, PermTasksCreate,
	},
	RoleGuest: {
		PermTasksRead,
	},
}

// DefaultGrant returns a fresh copy of the default permission set for role.
func DefaultGrant(role Role) []Permission {
	grant := DefaultPermissions[role]
	out := make([]Permission, len(grant))
	copy(out, grant)
	return out
}

// RoleStrings converts a role set to its wire representation.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// PermissionStrings converts a permission set to its wire representation.
func PermissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// RolesFromStrings parses the wire representation of a role set.
func RolesFromStrings(values []string) []Role {
	out := make([]Role, len(values))
	for i, v := range values {
		out[i] = Role(v)
	}
	return out
}

// PermissionsFromStrings parses the wire representation of a permission set.
func PermissionsFromStrings(values []string) []Permission {
	out := make([]Permission, len(values))
	for i, v := range values {
		out[i] = Permission(v)
	}
	return out
}
