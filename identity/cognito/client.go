// Package cognito talks to the user pool JSON API for direct credential
// authentication, refresh, password reset and global sign out.
package cognito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-storefront/identity"
	"github.com/jrsteele09/go-storefront/internal/errors"
)

const (
	targetPrefix = "AWSCognitoIdentityProviderService."
	contentType  = "application/x-amz-json-1.1"

	challengeNewPassword = "NEW_PASSWORD_REQUIRED"
)

// Client implements the identity interfaces against one app client of a
// user pool. The app client must allow USER_PASSWORD_AUTH and must not have a
// secret.
type Client struct {
	endpoint   string
	clientID   string
	httpClient *http.Client
}

var (
	_ identity.Authenticator    = (*Client)(nil)
	_ identity.Refresher        = (*Client)(nil)
	_ identity.PasswordResetter = (*Client)(nil)
	_ identity.SignOuter        = (*Client)(nil)
)

type Option func(*Client)

// WithEndpoint overrides the regional endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(region, clientID string, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("[cognito.New] clientID is required")
	}
	c := &Client{
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	if region != "" {
		c.endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		return nil, errors.New("[cognito.New] region or endpoint is required")
	}
	return c, nil
}

type authenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType"`
}

type initiateAuthResponse struct {
	AuthenticationResult *authenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
	Session              string                `json:"Session"`
}

// Authenticate runs USER_PASSWORD_AUTH. A NEW_PASSWORD_REQUIRED challenge is
// returned as errors.ErrNewPasswordRequired rather than answered.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*identity.Tokens, error) {
	var resp initiateAuthResponse
	err := c.call(ctx, "InitiateAuth", map[string]any{
		"AuthFlow": "USER_PASSWORD_AUTH",
		"ClientId": c.clientID,
		"AuthParameters": map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ChallengeName == challengeNewPassword {
		return nil, errors.ErrNewPasswordRequired
	}
	if resp.ChallengeName != "" {
		return nil, errors.Wrapf(errors.ErrUnsupported, "authentication challenge %s", resp.ChallengeName)
	}
	if resp.AuthenticationResult == nil {
		return nil, errors.Wrapf(errors.ErrNoTokenFound, "InitiateAuth returned no tokens")
	}
	return resp.AuthenticationResult.tokens(""), nil
}

// RefreshSession runs REFRESH_TOKEN_AUTH. The refresh token is carried over
// when the response does not rotate it.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	if refreshToken == "" {
		return nil, errors.ErrRefreshTokenInvalid
	}
	var resp initiateAuthResponse
	err := c.call(ctx, "InitiateAuth", map[string]any{
		"AuthFlow": "REFRESH_TOKEN_AUTH",
		"ClientId": c.clientID,
		"AuthParameters": map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Type == "NotAuthorizedException" {
			return nil, errors.Wrapf(errors.ErrRefreshTokenInvalid, "%s", apiErr.Message)
		}
		return nil, err
	}
	if resp.AuthenticationResult == nil {
		return nil, errors.Wrapf(errors.ErrRefreshTokenInvalid, "refresh returned no tokens")
	}
	return resp.AuthenticationResult.tokens(refreshToken), nil
}

func (c *Client) ForgotPassword(ctx context.Context, username string) (*identity.CodeDelivery, error) {
	var resp struct {
		CodeDeliveryDetails identity.CodeDelivery `json:"CodeDeliveryDetails"`
	}
	err := c.call(ctx, "ForgotPassword", map[string]any{
		"ClientId": c.clientID,
		"Username": username,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.CodeDeliveryDetails, nil
}

func (c *Client) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	return c.call(ctx, "ConfirmForgotPassword", map[string]any{
		"ClientId":         c.clientID,
		"Username":         username,
		"ConfirmationCode": code,
		"Password":         newPassword,
	}, nil)
}

// SignOut invalidates every refresh token issued to the user.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.call(ctx, "GlobalSignOut", map[string]any{
		"AccessToken": accessToken,
	}, nil)
}

func (r *authenticationResult) tokens(previousRefresh string) *identity.Tokens {
	refresh := r.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return &identity.Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: refresh,
		IDToken:      r.IDToken,
		ExpiresIn:    r.ExpiresIn,
		TokenType:    r.TokenType,
	}
}

func (c *Client) call(ctx context.Context, operation string, input any, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetPrefix+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, data)
	}
	if output == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, output); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// APIError is an error response from the user pool.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cognito %s (status %d)", e.Type, e.StatusCode)
	}
	return fmt.Sprintf("cognito %s: %s", e.Type, e.Message)
}

// Unwrap maps the exception type onto the package-level error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Type {
	case "NotAuthorizedException", "UserNotFoundException":
		return errors.ErrInvalidCredentials
	case "UserNotConfirmedException":
		return errors.ErrUserNotConfirmed
	case "PasswordResetRequiredException":
		return errors.ErrNewPasswordRequired
	default:
		return nil
	}
}

func parseError(status int, data []byte) error {
	var payload struct {
		Type        string `json:"__type"`
		Message     string `json:"message"`
		MessageCaps string `json:"Message"`
	}
	_ = json.Unmarshal(data, &payload)

	apiErr := &APIError{StatusCode: status, Type: payload.Type, Message: payload.Message}
	if apiErr.Message == "" {
		apiErr.Message = payload.MessageCaps
	}
	if i := strings.LastIndex(apiErr.Type, "#"); i >= 0 {
		apiErr.Type = apiErr.Type[i+1:]
	}
	if apiErr.Type == "" {
		apiErr.Type = http.StatusText(status)
	}
	return apiErr
}
