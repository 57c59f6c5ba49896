package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleBuyer      = "buyer"
	RoleSeller     = "seller"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleFinanceOps = "finance_ops" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleFinanceOps }
