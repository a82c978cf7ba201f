package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryOf extracts the expiry of an access token. When the token is a
// JWT carrying an exp claim, that claim wins; otherwise the fallback
// lifetime is assumed from now. The signature is deliberately not
// verified: the store only needs a refresh deadline, the upstream is the
// authority on validity.
func expiryOf(token string, now time.Time, fallback time.Duration) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if claims.ExpiresAt != nil && !claims.ExpiresAt.IsZero() {
			return claims.ExpiresAt.Time
		}
	}
	return now.Add(fallback)
}
