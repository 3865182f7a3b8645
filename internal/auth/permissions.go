package auth

// Permission represents a named capability that a role may hold.
type Permission string

const (
	// PermControllerRead allows viewing controllers, snapshots,
	// device inventory, and resource metrics.
	PermControllerRead Permission = "controller:read"

	// PermImportCommit allows committing parsed diagnostic exports
	// into the controller history.
	PermImportCommit Permission = "import:commit"

	// PermVisitManage allows creating visits and working through
	// checklist items and tasks.
	PermVisitManage Permission = "visit:manage"

	// PermVisitReview allows signing off completed visits.
	PermVisitReview Permission = "visit:review"

	// PermProcedureManage allows maintaining the procedure library.
	PermProcedureManage Permission = "procedure:manage"

	// PermUserManage allows creating and managing non-admin user
	// accounts. Operations on admin accounts additionally require
	// PermSystemAdmin; the handlers enforce that split.
	PermUserManage Permission = "user:manage"

	// PermSystemAdmin allows destructive operations: deleting
	// snapshots, controllers, and visits.
	PermSystemAdmin Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleTechnician: {
		PermControllerRead,
		PermImportCommit,
		PermVisitManage,
	},
	RoleSupervisor: {
		PermControllerRead,
		PermImportCommit,
		PermVisitManage,
		PermVisitReview,
		PermProcedureManage,
		PermUserManage,
	},
	RoleAdmin: {
		PermControllerRead,
		PermImportCommit,
		PermVisitManage,
		PermVisitReview,
		PermProcedureManage,
		PermUserManage,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the role grants the given permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns the full permission set for a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
