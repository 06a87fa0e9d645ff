package config

import "strings"

// AuthProtocol selects how the session is acquired.
type AuthProtocol string

const (
	// ProtocolHosted redirects to the hosted UI and reads tokens back from the
	// landing URL.
	ProtocolHosted AuthProtocol = "hosted"
	// ProtocolDirect exchanges username and password with the user pool.
	ProtocolDirect AuthProtocol = "direct"
)

const (
	cognitoDomainVar   = "COGNITO_DOMAIN"
	cognitoClientIDVar = "COGNITO_CLIENT_ID"
	cognitoRedirectVar = "COGNITO_REDIRECT_URI"
	cognitoLogoutVar   = "COGNITO_LOGOUT_URI"
	cognitoRegionVar   = "COGNITO_REGION"
	cognitoIssuerVar   = "COGNITO_ISSUER"
	cognitoScopesVar   = "COGNITO_SCOPES"
	authProtocolVar    = "AUTH_PROTOCOL"
)

type CognitoConfig interface {
	GetAuthProtocol() AuthProtocol
	GetDomain() string
	GetClientID() string
	GetRedirectURI() string
	GetLogoutURI() string
	GetRegion() string
	GetIssuer() string
	GetScopes() []string
}

type Cognito struct{}

var _ CognitoConfig = Cognito{}

func (Cognito) GetAuthProtocol() AuthProtocol {
	if strings.EqualFold(GetEnv(authProtocolVar, ""), string(ProtocolDirect)) {
		return ProtocolDirect
	}
	return ProtocolHosted
}

func (Cognito) GetDomain() string {
	return GetEnv(cognitoDomainVar, "")
}

func (Cognito) GetClientID() string {
	return GetEnv(cognitoClientIDVar, "")
}

func (Cognito) GetRedirectURI() string {
	return GetEnv(cognitoRedirectVar, "")
}

// GetLogoutURI defaults to the redirect URI's origin when unset.
func (c Cognito) GetLogoutURI() string {
	if v := GetEnv(cognitoLogoutVar, ""); v != "" {
		return v
	}
	redirect := c.GetRedirectURI()
	if i := strings.Index(redirect, "://"); i >= 0 {
		if j := strings.Index(redirect[i+3:], "/"); j >= 0 {
			return redirect[:i+3+j]
		}
	}
	return redirect
}

func (Cognito) GetRegion() string {
	return GetEnv(cognitoRegionVar, "")
}

func (Cognito) GetIssuer() string {
	return GetEnv(cognitoIssuerVar, "")
}

func (Cognito) GetScopes() []string {
	return strings.Fields(GetEnv(cognitoScopesVar, "openid email profile"))
}
