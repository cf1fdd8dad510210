package rbac

const (
	PermPaperCreate      = "paper:create"
	PermPaperView        = "paper:view"
	PermPaperCompose     = "paper:compose"
	PermAssignmentIssue  = "assignment:issue"
	PermAssignmentManage = "assignment:manage"
	PermAssignmentView   = "assignment:view"
)

// RolePermissions is the default policy. Candidates are not listed: they
// authenticate with an invitation code, not a role.
var RolePermissions = map[string][]string{
	"recruiter": {
		"paper:*",
		PermAssignmentIssue,
		PermAssignmentManage,
		PermAssignmentView,
	},
	"admin": {
		"*", // everything
	},
}
