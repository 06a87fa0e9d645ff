// Package identity defines the boundary to the identity provider that issues
// the session token triple.
package identity

import "context"

// Tokens is the result of a successful authentication or refresh.
type Tokens struct {
	// AccessToken is the JWT sent as "Authorization: Bearer <token>" to the API.
	AccessToken string `json:"access_token"`

	// RefreshToken is opaque. Refresh responses may omit it, in which case
	// the previous refresh token stays valid.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken carries the identity claims (email, names, phone, username).
	IDToken string `json:"id_token"`

	// ExpiresIn is a hint in seconds; the exp claim is authoritative.
	ExpiresIn int `json:"expires_in,omitempty"`

	TokenType string `json:"token_type,omitempty"`
}

// CodeDelivery describes where a verification code was sent.
type CodeDelivery struct {
	Destination    string `json:"Destination"`
	DeliveryMedium string `json:"DeliveryMedium"`
	AttributeName  string `json:"AttributeName"`
}

// Authenticator exchanges credentials for tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Tokens, error)
}

// Refresher exchanges a refresh token for a fresh access and identity token.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*Tokens, error)
}

type PasswordResetter interface {
	ForgotPassword(ctx context.Context, username string) (*CodeDelivery, error)
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
}

// SignOuter revokes the tokens issued to the session at the provider.
type SignOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}
