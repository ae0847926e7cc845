package auth

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const (
	PermEvaluationRead   = "evaluation.read"
	PermEvaluationWrite  = "evaluation.write"
	PermEvaluationSubmit = "evaluation.submit"
	PermEvaluationAdmin  = "evaluation.admin"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermEvaluationRead,
		PermEvaluationWrite,
		PermEvaluationSubmit,
		PermEvaluationAdmin,
	},
	RoleEmployee: {
		PermEvaluationRead,
		PermEvaluationWrite,
		PermEvaluationSubmit,
	},
}

// HasPermission reports whether role grants permission.
func HasPermission(role, permission string) bool {
	for _, granted := range rolePermissions[role] {
		if granted == permission {
			return true
		}
	}
	return false
}
