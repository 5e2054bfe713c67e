// Package service defines the domain service contracts the use cases
// depend on. Implementations live under internal/infra.
package service

import (
	"time"

	"github.com/google/uuid"
)

// TokenClaims is the advisory claim set embedded in an access token.
// Claims are decoded locally without signature verification and are used
// only for UI affordances (show/hide actions); every protected call is
// still authorized server-side.
type TokenClaims struct {
	// Subject is the id of the account the token was issued to.
	Subject uuid.UUID

	// Roles and Permissions are optional; when absent the resolver falls
	// back to fetching the permission set from the server.
	Roles       []string
	Permissions []string

	ExpiresAt time.Time
}

// HasEmbeddedPermissions reports whether the token carried an inline
// permission list, making a server round-trip unnecessary.
func (c *TokenClaims) HasEmbeddedPermissions() bool {
	return len(c.Permissions) > 0
}

// TokenDecoder extracts advisory claims from an access token.
type TokenDecoder interface {
	// Decode parses the claims embedded in tokenString. It returns an
	// error when the string is not a well-formed token; it does not
	// verify the signature.
	Decode(tokenString string) (*TokenClaims, error)
}
