package types

import "github.com/golang-jwt/jwt/v4"

type Claims struct {
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	TenantID     string `json:"tenant_id,omitempty"`
	SessionID    string `json:"sid"`
	Impersonator string `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

// Impersonating reports whether the token was issued to a super-admin acting
// as another user.
func (c Claims) Impersonating() bool {
	return c.Impersonator != ""
}
