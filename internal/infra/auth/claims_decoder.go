// Package auth provides concrete implementations for authentication-related
// domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"backer/internal/domain/service"
)

// claimsDecoder is a concrete implementation of the TokenDecoder interface
// using the JWT standard.
//
// Decoding is deliberately unverified: the client has no signing key and the
// claims only drive UI affordances. The server re-checks authorization on
// every protected call, so a forged token buys nothing beyond a misleading
// local display.
type claimsDecoder struct {
	parser *jwt.Parser
}

// NewClaimsDecoder is the constructor for claimsDecoder.
func NewClaimsDecoder() service.TokenDecoder {
	return &claimsDecoder{parser: jwt.NewParser()}
}

// Decode extracts the advisory claims from an access token.
func (d *claimsDecoder) Decode(tokenString string) (*service.TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse token structure")
	}

	decoded := &service.TokenClaims{
		Roles:       stringSlice(claims["roles"]),
		Permissions: stringSlice(claims["permissions"]),
	}

	if sub, ok := claims["sub"].(string); ok {
		userID, err := uuid.Parse(sub)
		if err != nil {
			return nil, errors.Wrap(err, "invalid subject id in token")
		}
		decoded.Subject = userID
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		decoded.ExpiresAt = exp.Time
	}

	return decoded, nil
}

// stringSlice converts a decoded JSON claim ([]any) to []string, dropping
// non-string members.
func stringSlice(claim any) []string {
	items, ok := claim.([]any)
	if !ok {
		return nil
	}

	var result []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}

	return result
}

// ExpiresWithin reports whether the claims expire within the given window.
// A zero expiry means the server issued a non-expiring token; treat it as
// not expiring.
func ExpiresWithin(claims *service.TokenClaims, window time.Duration) bool {
	if claims == nil || claims.ExpiresAt.IsZero() {
		return false
	}

	return time.Until(claims.ExpiresAt) < window
}
