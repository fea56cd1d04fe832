package auth

var tenantAdminPermissions = []string{
	"bookings:read",
	"bookings:write",
	"users:read",
	"users:write",
	"venue:settings",
	"reports:read",
}

// ValidRole reports whether role is one of the tenant roles.
func ValidRole(role string) bool {
	return role == RoleTenantAdmin || role == RoleStaff
}

// PermissionsForRole returns the permissions stored on a user created with role.
// Only tenant_admin carries any; every other role gets an empty, non-nil slice
// so the NOT NULL text[] column receives '{}' rather than NULL.
func PermissionsForRole(role string) []string {
	if role == RoleTenantAdmin {
		return append([]string(nil), tenantAdminPermissions...)
	}
	return []string{}
}
