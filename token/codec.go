// Package token decodes JWT-structured tokens issued by the identity
// provider. Signatures are not verified; the API verifies them server side.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/utils"
)

// Decode parses raw without verifying its signature. Anything that is not a
// three segment JWT with a known alg and a numeric exp claim fails with an
// error wrapping errors.ErrInvalidTokenFormat.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "empty token")
	}
	if strings.Count(raw, ".") != 2 {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "token must have three segments")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "parse token: %v", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "error extracting claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "exp claim: %v", err)
	}
	if exp == nil {
		return nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "token missing exp claim")
	}

	c := &Claims{ExpiresAt: exp.Time}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Subject, _ = claims.GetSubject()
	c.Issuer, _ = claims.GetIssuer()
	c.TokenUse = stringClaim(claims, "token_use")
	c.ClientID = stringClaim(claims, "client_id")
	c.Scope = stringClaim(claims, "scope")
	c.Email = stringClaim(claims, "email")
	c.GivenName = stringClaim(claims, "given_name")
	c.FamilyName = stringClaim(claims, "family_name")
	c.PhoneNumber = stringClaim(claims, "phone_number")
	c.EmailVerified = boolClaim(claims, "email_verified")

	c.Username = stringClaim(claims, "cognito:username")
	if c.Username == "" {
		c.Username = stringClaim(claims, "username")
	}

	if groups, ok := claims["cognito:groups"].([]any); ok {
		c.Groups = utils.ToStringSlice(groups)
	}

	return c, nil
}

// ExpiresAt is a convenience for callers that only need the expiry instant.
func ExpiresAt(raw string) (time.Time, error) {
	c, err := Decode(raw)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

func stringClaim(claims jwtlib.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true"/"false" strings some
// user pools emit.
func boolClaim(claims jwtlib.MapClaims, name string) bool {
	switch v := claims[name].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
