package identity

import (
	"strings"
	"time"
)

// Role identifies the kind of principal an access or refresh token belongs to.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleBookOwner Role = "BookOwner"
	RoleReader    Role = "Reader"
)

// IsValid checks if the role is one of the predefined principal kinds.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleBookOwner, RoleReader:
		return true
	default:
		return false
	}
}

// TokenTTL returns the access-token lifetime for the role. Admin sessions are
// shorter-lived than owner and reader sessions; this policy difference comes
// from the product requirements and must not be collapsed.
func (r Role) TokenTTL() time.Duration {
	if r == RoleAdmin {
		return time.Hour
	}
	return 2 * time.Hour
}

// IDClaim returns the name of the role-specific id claim embedded in access
// tokens, or "" for roles identified by name alone.
func (r Role) IDClaim() string {
	switch r {
	case RoleBookOwner:
		return "bookOwnerId"
	case RoleReader:
		return "readerId"
	default:
		return ""
	}
}

// GetAllRoles returns all predefined roles.
func GetAllRoles() []Role {
	return []Role{RoleAdmin, RoleBookOwner, RoleReader}
}

// ParseRole safely parses a string into a Role. Matching is case-insensitive.
func ParseRole(roleStr string) (Role, bool) {
	for _, role := range GetAllRoles() {
		if strings.EqualFold(string(role), roleStr) {
			return role, true
		}
	}
	return Role(roleStr), false
}
