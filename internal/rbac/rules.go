package rbac

const (
	RoleAdmin  = "admin"
	RoleIssuer = "issuer"
)

const (
	PermTestCreate      = "test:create"
	PermSubmissionsList = "submissions:list"
)

// Candidates carry no role: the access code is their credential.
var RolePermissions = map[string][]string{
	RoleIssuer: {
		PermTestCreate,
		PermSubmissionsList,
	},
	RoleAdmin: {
		"*",
	},
}
