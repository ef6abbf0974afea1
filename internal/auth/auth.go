// Package auth issues and validates the JWT pairs handed out after OTP
// verification.
package auth

import "github.com/golang-jwt/jwt/v5"

// Authenticator mints an access/refresh pair for a verified user and
// validates presented tokens. Access and refresh tokens are signed with
// separate secrets so one cannot stand in for the other.
type Authenticator interface {
	GenerateTokens(userID int64, role string) (access string, refresh string, err error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateRefreshToken(token string) (*jwt.Token, error)
}
