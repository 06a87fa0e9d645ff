// Package session holds the authenticated session: the token triple issued
// by the identity provider, the claims decoded from it and the timestamps of
// the last login and refresh. A Store is the single writer of the persisted
// tokens.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/rs/zerolog/log"
)

// Storage keys for the persisted token triple. They are always written and
// deleted together.
const (
	AccessTokenKey  = "storefront.access_token"
	RefreshTokenKey = "storefront.refresh_token"
	IDTokenKey      = "storefront.id_token"
)

var tokenKeys = []string{AccessTokenKey, RefreshTokenKey, IDTokenKey}

type State int

const (
	Unauthenticated State = iota
	Authenticated
	// Expired means the tokens are present but the access or identity token
	// is past its exp claim. The session still counts as authenticated until
	// cleared.
	Expired
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

// Metadata is advisory and never used for authorization decisions.
type Metadata struct {
	LoginAt       time.Time
	LastRefreshAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	storage  storage.Store
	tokens   *Tokens
	access   *token.Claims
	id       *token.Claims
	metadata Metadata
	now      func() time.Time

	subsMu  sync.Mutex
	subs    map[int]func(authenticated bool)
	nextSub int
}

type Option func(*Store)

// WithNowFunc sets the clock used for expiry predicates and metadata.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(st storage.Store, opts ...Option) *Store {
	s := &Store{
		storage: st,
		now:     time.Now,
		subs:    make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAuthData decodes the access and identity tokens, persists the triple and
// makes it the current session. Any decode failure clears the session and
// returns an error wrapping errors.ErrInvalidTokenFormat.
func (s *Store) SetAuthData(ctx context.Context, accessToken, refreshToken, idToken string) error {
	access, id, err := decodePair(accessToken, refreshToken, idToken)
	if err != nil {
		if clearErr := s.ClearAuthData(ctx); clearErr != nil {
			log.Err(clearErr).Msg("failed to clear session after invalid tokens")
		}
		return err
	}

	s.mu.Lock()
	wasAuthenticated := s.tokens != nil
	err = s.storage.Set(ctx, map[string]string{
		AccessTokenKey:  accessToken,
		RefreshTokenKey: refreshToken,
		IDTokenKey:      idToken,
	})
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "persist session")
	}
	now := s.now()
	s.tokens = &Tokens{AccessToken: accessToken, RefreshToken: refreshToken, IDToken: idToken}
	s.access = access
	s.id = id
	s.metadata = Metadata{LoginAt: now, LastRefreshAt: now}
	s.mu.Unlock()

	if !wasAuthenticated {
		s.notify(true)
	}
	return nil
}

func decodePair(accessToken, refreshToken, idToken string) (*token.Claims, *token.Claims, error) {
	access, err := token.Decode(accessToken)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "access token")
	}
	id, err := token.Decode(idToken)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "id token")
	}
	if refreshToken == "" {
		return nil, nil, errors.Wrapf(errors.ErrInvalidTokenFormat, "refresh token is empty")
	}
	return access, id, nil
}

// UpdateAccessToken replaces only the access token. A token that fails to
// decode leaves the current session untouched.
func (s *Store) UpdateAccessToken(ctx context.Context, accessToken string) error {
	access, err := token.Decode(accessToken)
	if err != nil {
		return errors.Wrapf(err, "access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil {
		return errors.ErrNotAuthenticated
	}
	if err := s.storage.Set(ctx, map[string]string{AccessTokenKey: accessToken}); err != nil {
		return errors.Wrapf(err, "persist access token")
	}
	s.tokens = &Tokens{AccessToken: accessToken, RefreshToken: s.tokens.RefreshToken, IDToken: s.tokens.IDToken}
	s.access = access
	s.metadata.LastRefreshAt = s.now()
	return nil
}

// ClearAuthData wipes the session from memory and storage. Calling it on an
// empty store is a no-op.
func (s *Store) ClearAuthData(ctx context.Context) error {
	s.mu.Lock()
	wasAuthenticated := s.tokens != nil
	s.tokens = nil
	s.access = nil
	s.id = nil
	s.metadata = Metadata{}
	err := s.storage.Delete(ctx, tokenKeys...)
	s.mu.Unlock()

	if wasAuthenticated {
		s.notify(false)
	}
	if err != nil {
		return errors.Wrapf(err, "delete persisted session")
	}
	return nil
}

// InitializeFromStorage restores a persisted session. An incomplete triple is
// removed and the store stays unauthenticated.
func (s *Store) InitializeFromStorage(ctx context.Context) error {
	values := make(map[string]string, len(tokenKeys))
	for _, key := range tokenKeys {
		v, err := s.storage.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && v == "") {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", key)
		}
		values[key] = v
	}

	if len(values) == 0 {
		return nil
	}
	if len(values) < len(tokenKeys) {
		log.Warn().Int("found", len(values)).Msg("discarding incomplete persisted session")
		return s.ClearAuthData(ctx)
	}
	return s.SetAuthData(ctx, values[AccessTokenKey], values[RefreshTokenKey], values[IDTokenKey])
}

// IsAuthenticated reports whether a decoded token triple is present. It does
// not look at expiry.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens != nil
}

// IsAccessTokenExpired is true when there is no session.
func (s *Store) IsAccessTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access == nil || s.access.Expired(s.now())
}

// IsIDTokenExpired is true when there is no session.
func (s *Store) IsIDTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id == nil || s.id.Expired(s.now())
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.tokens == nil:
		return Unauthenticated
	case s.access.Expired(s.now()) || s.id.Expired(s.now()):
		return Expired
	default:
		return Authenticated
	}
}

// AccessToken returns the current access token, or "" without a session.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

// Tokens returns a copy of the token triple.
func (s *Store) Tokens() (Tokens, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return Tokens{}, false
	}
	return *s.tokens, true
}

func (s *Store) AccessClaims() (token.Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == nil {
		return token.Claims{}, false
	}
	return *s.access, true
}

func (s *Store) IDClaims() (token.Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == nil {
		return token.Claims{}, false
	}
	return *s.id, true
}

func (s *Store) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// Subscribe registers fn for changes of IsAuthenticated. fn runs on the
// goroutine that caused the change, after the store's lock is released.
func (s *Store) Subscribe(fn func(authenticated bool)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(authenticated bool) {
	s.subsMu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(authenticated)
	}
}
