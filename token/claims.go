package token

import (
	"strings"
	"time"
)

// Claims is the decoded payload of an access or identity token.
type Claims struct {
	Subject       string
	ExpiresAt     time.Time
	IssuedAt      time.Time
	Issuer        string
	TokenUse      string // "access" or "id" for Cognito tokens
	ClientID      string
	Scope         string
	Groups        []string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	PhoneNumber   string
	Username      string
}

// Expired reports whether now is at or past the expiry instant.
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// DisplayName prefers the full name, then the username, then the email.
func (c *Claims) DisplayName() string {
	name := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	switch {
	case name != "":
		return name
	case c.Username != "":
		return c.Username
	default:
		return c.Email
	}
}
