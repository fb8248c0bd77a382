package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT signs a token with the given subject and expiry. A zero exp omits
// the claim.
func JWT(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}
