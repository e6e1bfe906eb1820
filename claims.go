package identity

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the concrete claim set carried by BookSwap access tokens:
// the registered claims plus the principal's display name, role, and the
// role-specific id claim ("bookOwnerId" or "readerId"). Admin tokens carry no
// id claim; admins are identified by name.
type AccessClaims struct {
	jwt.RegisteredClaims
	PrincipalName string `json:"name,omitempty"`
	PrincipalRole Role   `json:"role,omitempty"`
	BookOwnerID   string `json:"bookOwnerId,omitempty"`
	ReaderID      string `json:"readerId,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*AccessClaims)(nil)

// Subject returns the subject claim.
func (c *AccessClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Name returns the principal's display name.
func (c *AccessClaims) Name() string {
	return c.PrincipalName
}

// Role returns the principal's role.
func (c *AccessClaims) Role() string {
	return string(c.PrincipalRole)
}

// PrincipalID returns the role-specific principal id, falling back to the
// subject for roles without an id claim.
func (c *AccessClaims) PrincipalID() string {
	switch c.PrincipalRole {
	case RoleBookOwner:
		if c.BookOwnerID != "" {
			return c.BookOwnerID
		}
	case RoleReader:
		if c.ReaderID != "" {
			return c.ReaderID
		}
	}
	return c.Subject()
}

// HasRole checks if the token was issued for the given role. Matching is
// case-insensitive.
func (c *AccessClaims) HasRole(role string) bool {
	return strings.EqualFold(string(c.PrincipalRole), role)
}

// Expires returns the expiration time.
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time.
func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
