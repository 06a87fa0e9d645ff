// Package auth acquires, refreshes and ends the storefront session. It is the
// only writer of the session store apart from explicit logout.
package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-storefront/identity"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Navigator is the host's browser boundary.
type Navigator interface {
	// Navigate leaves the application for url.
	Navigate(url string) error
	// ReplaceURL rewrites the current history entry without navigating.
	ReplaceURL(url string)
}

// HostedProvider is the hosted UI side of the identity provider.
type HostedProvider interface {
	AuthorizeURL(state, verifier string) string
	LogoutURL() string
	Exchange(ctx context.Context, code, verifier string) (*identity.Tokens, error)
}

type Flow struct {
	session       *session.Store
	authenticator identity.Authenticator
	refresher     identity.Refresher
	resetter      identity.PasswordResetter
	signOuter     identity.SignOuter
	hosted        HostedProvider
	navigator     Navigator
	flowStates    FlowStateRepo
	clearHooks    []func(ctx context.Context)
	reauth        func()
	nowTime       func() time.Time
}

type FlowOption func(*Flow)

// WithAuthenticator enables direct credential login.
func WithAuthenticator(a identity.Authenticator) FlowOption {
	return func(f *Flow) {
		f.authenticator = a
	}
}

func WithRefresher(r identity.Refresher) FlowOption {
	return func(f *Flow) {
		f.refresher = r
	}
}

func WithPasswordResetter(r identity.PasswordResetter) FlowOption {
	return func(f *Flow) {
		f.resetter = r
	}
}

// WithSignOuter revokes tokens at the provider on logout when the hosted UI
// is not in use.
func WithSignOuter(s identity.SignOuter) FlowOption {
	return func(f *Flow) {
		f.signOuter = s
	}
}

// WithHostedProvider enables the hosted UI redirect login.
func WithHostedProvider(h HostedProvider) FlowOption {
	return func(f *Flow) {
		f.hosted = h
	}
}

func WithNavigator(n Navigator) FlowOption {
	return func(f *Flow) {
		f.navigator = n
	}
}

// WithFlowStateRepo sets where pending hosted logins are kept.
func WithFlowStateRepo(r FlowStateRepo) FlowOption {
	return func(f *Flow) {
		f.flowStates = r
	}
}

// WithSessionClearHook runs fn every time the flow clears the session, so
// that caches derived from the user can be dropped with it.
func WithSessionClearHook(fn func(ctx context.Context)) FlowOption {
	return func(f *Flow) {
		f.clearHooks = append(f.clearHooks, fn)
	}
}

// WithReauthenticatePrompt is called after an unauthorized API response has
// cleared the session.
func WithReauthenticatePrompt(fn func()) FlowOption {
	return func(f *Flow) {
		f.reauth = fn
	}
}

func WithNowTime(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.nowTime = now
	}
}

func NewFlow(sess *session.Store, options ...FlowOption) (*Flow, error) {
	if sess == nil {
		return nil, errors.New("[NewFlow] session store is required")
	}

	f := &Flow{
		session: sess,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(f)
	}

	if f.authenticator == nil && f.hosted == nil {
		return nil, errors.New("[NewFlow] an authenticator or a hosted provider is required")
	}
	if f.flowStates == nil {
		f.flowStates = NewFlowStateRepo(storage.NewMemory(), f.nowTime)
	}
	return f, nil
}

// Hosted reports whether logins go through the hosted UI.
func (f *Flow) Hosted() bool {
	return f.hosted != nil
}

// Login exchanges credentials for a session. A required password change is
// returned as errors.ErrNewPasswordRequired and never answered here.
func (f *Flow) Login(ctx context.Context, username, password string) error {
	if f.authenticator == nil {
		return errors.Wrapf(errors.ErrUnsupported, "direct login is not configured")
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.Wrapf(errors.ErrInvalidCredentials, "username and password are required")
	}

	tokens, err := f.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if err := f.session.SetAuthData(ctx, tokens.AccessToken, tokens.RefreshToken, tokens.IDToken); err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("logged in")
	return nil
}

// BeginHostedLogin records a pending login and sends the browser to the
// hosted UI. The authorize URL is returned for hosts without a navigator.
func (f *Flow) BeginHostedLogin(ctx context.Context, returnURL string) (string, error) {
	if f.hosted == nil {
		return "", errors.Wrapf(errors.ErrUnsupported, "hosted login is not configured")
	}

	fs := &FlowState{
		State:        uuid.NewString(),
		CodeVerifier: oauth2.GenerateVerifier(),
		ReturnURL:    returnURL,
		CreatedAt:    f.nowTime(),
	}
	if err := f.flowStates.Upsert(ctx, fs); err != nil {
		return "", errors.Wrapf(err, "store pending login")
	}

	authorizeURL := f.hosted.AuthorizeURL(fs.State, fs.CodeVerifier)
	if f.navigator != nil {
		if err := f.navigator.Navigate(authorizeURL); err != nil {
			return authorizeURL, errors.Wrapf(err, "navigate to hosted login")
		}
	}
	return authorizeURL, nil
}

// HandleRedirect completes a hosted login from the URL the browser landed on.
// Tokens in the fragment are used directly; a code and state in the query are
// exchanged. The auth parameters are stripped from the history entry either
// way. It returns the URL the login was started from, if any.
func (f *Flow) HandleRedirect(ctx context.Context, landing string) (string, error) {
	u, err := url.Parse(landing)
	if err != nil {
		return "", errors.Wrapf(errors.ErrNoTokenFound, "parse landing url: %v", err)
	}

	fragment, _ := url.ParseQuery(u.Fragment)
	query := u.Query()
	f.stripAuthParams(u, query)

	if providerErr := firstNonEmpty(fragment.Get("error"), query.Get("error")); providerErr != "" {
		desc := firstNonEmpty(fragment.Get("error_description"), query.Get("error_description"))
		return "", errors.Wrapf(errors.ErrNoTokenFound, "identity provider returned %s %s", providerErr, desc)
	}

	if access := fragment.Get("access_token"); access != "" {
		err := f.session.SetAuthData(ctx, access, fragment.Get("refresh_token"), fragment.Get("id_token"))
		return "", err
	}

	code, state := query.Get("code"), query.Get("state")
	if code == "" {
		return "", errors.ErrNoTokenFound
	}
	if f.hosted == nil {
		return "", errors.Wrapf(errors.ErrUnsupported, "hosted login is not configured")
	}

	fs, err := f.flowStates.Get(ctx, state)
	if err != nil {
		return "", err
	}
	if err := f.flowStates.Delete(ctx); err != nil {
		log.Err(err).Msg("failed to delete pending login")
	}

	tokens, err := f.hosted.Exchange(ctx, code, fs.CodeVerifier)
	if err != nil {
		return "", err
	}
	if err := f.session.SetAuthData(ctx, tokens.AccessToken, tokens.RefreshToken, tokens.IDToken); err != nil {
		return "", err
	}
	log.Info().Msg("hosted login completed")
	return fs.ReturnURL, nil
}

var authQueryParams = []string{"code", "state", "error", "error_description"}

func (f *Flow) stripAuthParams(u *url.URL, query url.Values) {
	hadParams := u.Fragment != ""
	cleaned := url.Values{}
	for k, v := range query {
		cleaned[k] = v
	}
	for _, p := range authQueryParams {
		if cleaned.Has(p) {
			hadParams = true
			cleaned.Del(p)
		}
	}
	if !hadParams || f.navigator == nil {
		return
	}

	stripped := *u
	stripped.Fragment = ""
	stripped.RawFragment = ""
	stripped.RawQuery = cleaned.Encode()
	f.navigator.ReplaceURL(stripped.String())
}

// Refresh renews the access and identity tokens with the refresh token.
func (f *Flow) Refresh(ctx context.Context) error {
	if f.refresher == nil {
		return errors.Wrapf(errors.ErrUnsupported, "refresh is not configured")
	}
	current, ok := f.session.Tokens()
	if !ok {
		return errors.ErrNotAuthenticated
	}

	tokens, err := f.refresher.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		return err
	}
	if tokens.IDToken == "" {
		return f.session.UpdateAccessToken(ctx, tokens.AccessToken)
	}
	refresh := tokens.RefreshToken
	if refresh == "" {
		refresh = current.RefreshToken
	}
	return f.session.SetAuthData(ctx, tokens.AccessToken, refresh, tokens.IDToken)
}

// RefreshOnStartup refreshes a restored session. Any failure, including no
// session to restore, clears the local session and the user caches.
func (f *Flow) RefreshOnStartup(ctx context.Context) error {
	if !f.session.IsAuthenticated() {
		f.clearLocal(ctx)
		return nil
	}
	if f.refresher == nil {
		return nil
	}
	if err := f.Refresh(ctx); err != nil {
		log.Err(err).Msg("startup refresh failed, clearing session")
		f.clearLocal(ctx)
		return err
	}
	return nil
}

// Logout clears the local session first. With the hosted UI the browser is
// then sent to the hosted logout endpoint; otherwise the provider is asked to
// revoke the tokens and a failure there is only logged.
func (f *Flow) Logout(ctx context.Context) error {
	tokens, hadSession := f.session.Tokens()
	f.clearLocal(ctx)

	if f.hosted != nil && f.navigator != nil {
		return f.navigator.Navigate(f.hosted.LogoutURL())
	}
	if f.signOuter != nil && hadSession {
		if err := f.signOuter.SignOut(ctx, tokens.AccessToken); err != nil {
			log.Err(err).Msg("provider sign out failed")
		}
	}
	return nil
}

// HandleUnauthorized reacts to a 401 from the API.
func (f *Flow) HandleUnauthorized(ctx context.Context) {
	if !f.session.IsAuthenticated() {
		return
	}
	log.Warn().Msg("api rejected the session, re-authentication required")
	f.clearLocal(ctx)
	if f.reauth != nil {
		f.reauth()
	}
}

func (f *Flow) RequestPasswordReset(ctx context.Context, username string) (*identity.CodeDelivery, error) {
	if f.resetter == nil {
		return nil, errors.Wrapf(errors.ErrUnsupported, "password reset is not configured")
	}
	return f.resetter.ForgotPassword(ctx, username)
}

// ResendPasswordResetCode sends a new code; the previous one stops working.
func (f *Flow) ResendPasswordResetCode(ctx context.Context, username string) (*identity.CodeDelivery, error) {
	return f.RequestPasswordReset(ctx, username)
}

func (f *Flow) ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error {
	if f.resetter == nil {
		return errors.Wrapf(errors.ErrUnsupported, "password reset is not configured")
	}
	return f.resetter.ConfirmForgotPassword(ctx, username, code, newPassword)
}

func (f *Flow) clearLocal(ctx context.Context) {
	if err := f.session.ClearAuthData(ctx); err != nil {
		log.Err(err).Msg("failed to clear session")
	}
	for _, hook := range f.clearHooks {
		hook(ctx)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
