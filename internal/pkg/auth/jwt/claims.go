package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set carried by chatwave identity tokens.
type Payload struct {
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable user id the token was issued for.
	ID string `json:"id"`

	// Name is the display name at issue time, for logging only.
	Name string `json:"name,omitempty"`
}
