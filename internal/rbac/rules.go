package rbac

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Identity is the acting user as seen by domain code.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (i Identity) IsStaff() bool { return i.Role == RoleTeacher || i.Role == RoleAdmin }

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

// Default policy.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"exercise:view",
		"attempt:start",
		"attempt:submit",
		"submission:view-own",
		"user:change_password",
	},
	RoleTeacher: {
		"exercise:view",
		"exercise:author",
		"lesson:author",
		"catalog:author",
		"submission:view-own",
		"submission:view-all",
		"grade:write",
		"users:list",
		"users:manage",
		"user:change_password",
	},
	RoleAdmin: {
		"*",
	},
}
