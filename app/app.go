// Package app wires the storefront client together from configuration.
package app

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-storefront/api"
	"github.com/jrsteele09/go-storefront/auth"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/checkout"
	"github.com/jrsteele09/go-storefront/identity/cognito"
	"github.com/jrsteele09/go-storefront/identity/hosted"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/httplog"
	"github.com/jrsteele09/go-storefront/profile"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/jrsteele09/go-storefront/storage/filestore"
	"github.com/jrsteele09/go-storefront/storage/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// App owns one storefront client. Construct it with New, call Start once and
// Close on shutdown.
type App struct {
	Config   config.Config
	Storage  storage.Store
	Session  *session.Store
	Flow     *auth.Flow
	API      *api.Client
	Catalog  *catalog.Service
	Cart     *cart.Engine
	Checkout *checkout.Service
	Profile  *profile.Cache

	redis redis.UniversalClient
}

type options struct {
	storage        storage.Store
	navigator      auth.Navigator
	httpClient     *http.Client
	cognitoOptions []cognito.Option
	reauth         func()
}

type Option func(*options)

// WithStorage overrides the configured storage backend.
func WithStorage(st storage.Store) Option {
	return func(o *options) {
		o.storage = st
	}
}

func WithNavigator(n auth.Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

// WithHTTPClient is used for API, identity provider and catalog requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

func WithCognitoOptions(opts ...cognito.Option) Option {
	return func(o *options) {
		o.cognitoOptions = append(o.cognitoOptions, opts...)
	}
}

// WithReauthenticatePrompt is called when the API rejects the session.
func WithReauthenticatePrompt(fn func()) Option {
	return func(o *options) {
		o.reauth = fn
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg}
	if err := a.initStorage(o); err != nil {
		return nil, err
	}
	a.Session = session.NewStore(a.Storage)

	apiOpts := []api.Option{
		api.WithMaxTries(cfg.GetAPIMaxRetries()),
		api.WithUnauthorizedHandler(func(ctx context.Context) {
			a.Flow.HandleUnauthorized(ctx)
		}),
	}
	dev := cfg.GetEnv() == "DEV"
	if hc := o.httpClient; hc != nil || dev {
		if dev {
			hc = httplog.Wrap(hc, true)
		} else {
			own := *hc
			hc = &own
		}
		apiOpts = append(apiOpts, api.WithHTTPClient(hc))
	}
	apiOpts = append(apiOpts, api.WithTimeout(cfg.GetAPITimeout()))

	var err error
	if a.API, err = api.New(cfg.GetAPIBaseURL(), a.Session, apiOpts...); err != nil {
		a.closeRedis()
		return nil, err
	}

	catalogClient := o.httpClient
	if catalogClient == nil {
		catalogClient = catalog.NewCachingHTTPClient(cfg.GetCatalogCacheDir())
	}
	if dev {
		catalogClient = httplog.Wrap(catalogClient, true)
	}
	a.Catalog = catalog.NewService(cfg.GetAPIBaseURL(), catalogClient)
	a.Profile = profile.NewCache(a.Storage, a.API, profile.WithMaxAge(cfg.GetProfileCacheDuration()))
	a.Cart = cart.NewEngine(a.Storage, a.API, a.Session, cart.WithDebounce(cfg.GetCartSyncDebounce()))
	if a.Checkout, err = checkout.New(a.Cart, a.API); err != nil {
		a.closeRedis()
		return nil, err
	}

	if a.Flow, err = a.newFlow(ctx, o); err != nil {
		a.closeRedis()
		return nil, err
	}
	return a, nil
}

func (a *App) initStorage(o *options) error {
	if o.storage != nil {
		a.Storage = o.storage
		return nil
	}

	switch a.Config.GetStorageBackend() {
	case config.StorageMemory:
		a.Storage = storage.NewMemory()
	case config.StorageRedis:
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{a.Config.GetRedisAddr()},
			Password: a.Config.GetRedisPassword(),
			DB:       a.Config.GetRedisDB(),
		})
		a.Storage = redisstore.New(a.redis, a.Config.GetRedisPrefix())
	default:
		key, err := a.Config.GetEncryptionKey()
		if err != nil {
			return err
		}
		var fsOpts []filestore.Option
		if key != nil {
			fsOpts = append(fsOpts, filestore.WithEncryptionKey(key))
		}
		fs, err := filestore.New(a.Config.GetStateFile(), fsOpts...)
		if err != nil {
			return err
		}
		a.Storage = fs
	}
	return nil
}

func (a *App) newFlow(ctx context.Context, o *options) (*auth.Flow, error) {
	cfg := a.Config
	flowOpts := []auth.FlowOption{
		auth.WithFlowStateRepo(auth.NewFlowStateRepo(a.Storage, nil)),
		auth.WithSessionClearHook(func(ctx context.Context) {
			if err := a.Profile.Clear(ctx); err != nil {
				log.Err(err).Msg("failed to clear cached profile")
			}
		}),
	}
	if o.navigator != nil {
		flowOpts = append(flowOpts, auth.WithNavigator(o.navigator))
	}
	if o.reauth != nil {
		flowOpts = append(flowOpts, auth.WithReauthenticatePrompt(o.reauth))
	}

	// The user pool API serves password reset in both modes and is the only
	// login path in direct mode.
	if cfg.GetRegion() != "" || len(o.cognitoOptions) > 0 {
		cognitoOpts := o.cognitoOptions
		if o.httpClient != nil {
			cognitoOpts = append([]cognito.Option{cognito.WithHTTPClient(o.httpClient)}, cognitoOpts...)
		}
		pool, err := cognito.New(cfg.GetRegion(), cfg.GetClientID(), cognitoOpts...)
		if err != nil {
			return nil, err
		}
		flowOpts = append(flowOpts, auth.WithPasswordResetter(pool))
		if cfg.GetAuthProtocol() == config.ProtocolDirect {
			flowOpts = append(flowOpts,
				auth.WithAuthenticator(pool),
				auth.WithRefresher(pool),
				auth.WithSignOuter(pool),
			)
		}
	}

	if cfg.GetAuthProtocol() == config.ProtocolHosted {
		var hostedOpts []hosted.Option
		if o.httpClient != nil {
			hostedOpts = append(hostedOpts, hosted.WithHTTPClient(o.httpClient))
		}
		provider, err := hosted.New(ctx, hosted.Config{
			Domain:      cfg.GetDomain(),
			ClientID:    cfg.GetClientID(),
			RedirectURI: cfg.GetRedirectURI(),
			LogoutURI:   cfg.GetLogoutURI(),
			Issuer:      cfg.GetIssuer(),
			Scopes:      cfg.GetScopes(),
		}, hostedOpts...)
		if err != nil {
			return nil, err
		}
		flowOpts = append(flowOpts, auth.WithHostedProvider(provider), auth.WithRefresher(provider))
	}

	return auth.NewFlow(a.Session, flowOpts...)
}

// Start restores the persisted session and cart, refreshes the session and
// starts following login and logout. A failed refresh leaves the client
// signed out but is not an error.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.InitializeFromStorage(ctx); err != nil {
		if !errors.Is(err, errors.ErrInvalidTokenFormat) {
			return err
		}
		log.Warn().Err(err).Msg("discarded invalid persisted session")
	}
	if err := a.Cart.Load(ctx); err != nil {
		return err
	}
	if err := a.Flow.RefreshOnStartup(ctx); err != nil {
		log.Warn().Err(err).Msg("session could not be refreshed, signed out")
	}
	a.Cart.Watch(a.Session)
	return nil
}

func (a *App) Close(ctx context.Context) error {
	err := a.Cart.Close(ctx)
	a.Profile.Wait()
	a.closeRedis()
	return err
}

func (a *App) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		log.Err(err).Msg("failed to close redis client")
	}
}
