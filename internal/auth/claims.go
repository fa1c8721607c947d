package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload issued by the login service. The subject is the
// user ID; roles are carried for the signaling layer and not evaluated here.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}
