package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"
	RoleAdmin      = "admin"
	RoleViewer     = "viewer" // logs and reports only
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnown reports whether role is one the console issues tokens for.
func IsKnown(role string) bool {
	switch role {
	case RoleAgent, RoleAdmin, RoleViewer, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
