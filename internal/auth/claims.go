package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the console.
// Every console action is attributed to OperatorID.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string    `json:"operator_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}

// Session returns the operator session carried by an access token.
func (c Claims) Session() Session {
	return Session{OperatorID: c.OperatorID, Email: c.Email, Role: c.Role}
}
