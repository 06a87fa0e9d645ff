// Package tokentest mints signed JWTs shaped like user pool tokens for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signingKey = []byte("tokentest-signing-key")

// Sign returns claims signed with HS256.
func Sign(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// Access returns an access token for sub that expires at exp.
func Access(t testing.TB, sub string, exp time.Time) string {
	t.Helper()
	return Sign(t, jwtlib.MapClaims{
		"sub":       sub,
		"token_use": "access",
		"client_id": "test-client",
		"scope":     "openid email profile",
		"username":  sub,
		"iat":       exp.Add(-time.Hour).Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	})
}

// ID returns an identity token for sub that expires at exp.
func ID(t testing.TB, sub string, exp time.Time) string {
	t.Helper()
	return Sign(t, jwtlib.MapClaims{
		"sub":              sub,
		"token_use":        "id",
		"aud":              "test-client",
		"email":            sub + "@example.com",
		"email_verified":   true,
		"given_name":       "Test",
		"family_name":      "User",
		"phone_number":     "+15555550100",
		"cognito:username": sub,
		"iat":              exp.Add(-time.Hour).Unix(),
		"exp":              exp.Unix(),
	})
}

// Refresh returns an opaque refresh token. User pool refresh tokens are not
// JWTs the client can decode.
func Refresh() string {
	return "refresh-" + uuid.NewString()
}
