// Package hosted drives the user pool hosted UI: it builds the authorize and
// logout URLs and exchanges authorization codes and refresh tokens at the
// token endpoint.
package hosted

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-storefront/identity"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"golang.org/x/oauth2"
)

type Config struct {
	Domain      string // hosted UI domain, with or without scheme
	ClientID    string
	RedirectURI string
	LogoutURI   string
	// Issuer enables OpenID discovery of the endpoints. When empty the
	// endpoints are derived from Domain.
	Issuer string
	Scopes []string
}

type Provider struct {
	oauth          *oauth2.Config
	clientID       string
	logoutURI      string
	logoutEndpoint string
	httpClient     *http.Client
}

var _ identity.Refresher = (*Provider)(nil)

type Option func(*Provider)

// WithHTTPClient sets the client used for discovery and token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[hosted.New] ClientID is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("[hosted.New] RedirectURI is required")
	}
	if cfg.Domain == "" && cfg.Issuer == "" {
		return nil, errors.New("[hosted.New] Domain or Issuer is required")
	}

	p := &Provider{clientID: cfg.ClientID, logoutURI: cfg.LogoutURI}
	for _, opt := range opts {
		opt(p)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	base := domainURL(cfg.Domain)
	endpoint := oauth2.Endpoint{
		AuthURL:   base + "/oauth2/authorize",
		TokenURL:  base + "/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.logoutEndpoint = base + "/logout"

	if cfg.Issuer != "" {
		discovered, logout, err := p.discover(ctx, cfg.Issuer)
		if err != nil {
			return nil, err
		}
		endpoint = discovered
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		if logout != "" {
			p.logoutEndpoint = logout
		}
	}

	p.oauth = &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
	}
	return p, nil
}

func (p *Provider) discover(ctx context.Context, issuer string) (oauth2.Endpoint, string, error) {
	provider, err := oidc.NewProvider(p.context(ctx), issuer)
	if err != nil {
		return oauth2.Endpoint{}, "", fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}
	var extra struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return oauth2.Endpoint{}, "", fmt.Errorf("decode discovery document: %w", err)
	}
	return provider.Endpoint(), extra.EndSession, nil
}

func (p *Provider) context(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return oidc.ClientContext(ctx, p.httpClient)
}

// GenerateVerifier returns a new PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthorizeURL is the hosted login page for the authorization code flow with
// an S256 PKCE challenge derived from verifier.
func (p *Provider) AuthorizeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// LogoutURL ends the hosted UI session and returns the browser to the
// configured logout URI.
func (p *Provider) LogoutURL() string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	if p.logoutURI != "" {
		q.Set("logout_uri", p.logoutURI)
	}
	return p.logoutEndpoint + "?" + q.Encode()
}

// Exchange redeems an authorization code.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*identity.Tokens, error) {
	tok, err := p.oauth.Exchange(p.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, mapRetrieveError(err, errors.ErrInvalidCredentials)
	}
	return toTokens(tok, "")
}

// RefreshSession redeems a refresh token at the token endpoint.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	if refreshToken == "" {
		return nil, errors.ErrRefreshTokenInvalid
	}
	tok, err := p.oauth.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, mapRetrieveError(err, errors.ErrRefreshTokenInvalid)
	}
	return toTokens(tok, refreshToken)
}

func toTokens(tok *oauth2.Token, previousRefresh string) (*identity.Tokens, error) {
	idToken, _ := tok.Extra("id_token").(string)
	if tok.AccessToken == "" || idToken == "" {
		return nil, errors.Wrapf(errors.ErrNoTokenFound, "token response is missing access_token or id_token")
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	t := &identity.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		IDToken:      idToken,
		TokenType:    tok.TokenType,
	}
	if tok.ExpiresIn > 0 {
		t.ExpiresIn = int(tok.ExpiresIn)
	}
	return t, nil
}

// mapRetrieveError turns invalid_grant into sentinel.
func mapRetrieveError(err error, sentinel error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return errors.Wrapf(sentinel, "%s", re.ErrorDescription)
	}
	return fmt.Errorf("token endpoint: %w", err)
}

func domainURL(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if domain == "" || strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}
