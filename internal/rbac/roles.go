package rbac

// Role names are part of the token contract.
const (
	RoleOwner      = "owner"
	RoleAgent      = "agent"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

// Permission is one capability of the agent API.
type Permission string

const (
	PermConversationsRead  Permission = "conversations:read"
	PermConversationsWrite Permission = "conversations:write"
	PermContactsWrite      Permission = "contacts:write"
	PermReportsRead        Permission = "reports:read"
	PermAuditRead          Permission = "audit:read"
)

// grants maps each tenant role to its permissions. super_admin holds all of them.
var grants = map[string][]Permission{
	RoleOwner: {
		PermConversationsRead, PermConversationsWrite, PermContactsWrite, PermReportsRead, PermAuditRead,
	},
	RoleAgent:   {PermConversationsRead, PermConversationsWrite, PermContactsWrite, PermAuditRead},
	RoleAnalyst: {PermConversationsRead, PermReportsRead},
}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// Valid reports whether role is one the agent API understands.
func Valid(role string) bool {
	_, ok := grants[role]
	return ok || IsSuperAdmin(role)
}

// Can reports whether role holds p.
func Can(role string, p Permission) bool {
	if IsSuperAdmin(role) {
		return true
	}
	for _, g := range grants[role] {
		if g == p {
			return true
		}
	}
	return false
}
