package account

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature; the backend owns verification. Opaque tokens and tokens without
// exp expire fallback after issued.
func TokenExpiry(token string, issued time.Time, fallback time.Duration) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return issued.Add(fallback)
}
