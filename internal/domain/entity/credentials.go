// Package entity contains the core business objects of the client,
// each representing a unique, identifiable concept within the domain.
package entity

// Credentials is the bearer token pair issued by the platform.
// The pair is replaced as a whole on login and refresh, and removed as a
// whole on logout: at any observation point either both tokens are present
// or both are absent.
type Credentials struct {
	// AccessToken is the short-lived bearer string sent on every authorized
	// API call. It may carry embedded claims (subject id, roles, permissions).
	AccessToken string `json:"access_token"`

	// RefreshToken is the longer-lived token whose only purpose is to be
	// exchanged for a new access token.
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both tokens are present.
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Empty reports whether neither token is present.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
