package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/tokentest"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/stretchr/testify/require"
)

type triple struct {
	access, refresh, id string
}

func validTriple(t *testing.T, exp time.Time) triple {
	return triple{
		access:  tokentest.Access(t, "user-1", exp),
		refresh: tokentest.Refresh(),
		id:      tokentest.ID(t, "user-1", exp),
	}
}

func TestSetAuthDataAndReload(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	tr := validTriple(t, time.Now().Add(time.Hour))

	store := session.NewStore(st)
	require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))
	require.True(t, store.IsAuthenticated())
	require.Equal(t, session.Authenticated, store.State())
	require.Equal(t, tr.access, store.AccessToken())
	require.False(t, store.Metadata().LoginAt.IsZero())

	reloaded := session.NewStore(st)
	require.NoError(t, reloaded.InitializeFromStorage(ctx))
	require.True(t, reloaded.IsAuthenticated())

	wantAccess, _ := store.AccessClaims()
	gotAccess, _ := reloaded.AccessClaims()
	require.Equal(t, wantAccess, gotAccess)

	wantID, _ := store.IDClaims()
	gotID, _ := reloaded.IDClaims()
	require.Equal(t, wantID, gotID)

	tokens, ok := reloaded.Tokens()
	require.True(t, ok)
	require.Equal(t, session.Tokens{AccessToken: tr.access, RefreshToken: tr.refresh, IDToken: tr.id}, tokens)
}

func TestSetAuthDataMalformed(t *testing.T) {
	ctx := context.Background()
	good := validTriple(t, time.Now().Add(time.Hour))

	cases := map[string]triple{
		"bad access":    {access: "garbage", refresh: good.refresh, id: good.id},
		"bad id":        {access: good.access, refresh: good.refresh, id: "a.b.c"},
		"empty refresh": {access: good.access, refresh: "", id: good.id},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			st := storage.NewMemory()
			store := session.NewStore(st)
			require.NoError(t, store.SetAuthData(ctx, good.access, good.refresh, good.id))

			err := store.SetAuthData(ctx, tc.access, tc.refresh, tc.id)
			require.ErrorIs(t, err, errors.ErrInvalidTokenFormat)
			require.False(t, store.IsAuthenticated())
			require.Equal(t, session.Unauthenticated, store.State())
			require.Empty(t, store.AccessToken())
			_, ok := store.IDClaims()
			require.False(t, ok)
			require.Empty(t, st.Keys())
		})
	}
}

func TestUpdateAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces only the access token", func(t *testing.T) {
		st := storage.NewMemory()
		now := time.Now()
		clock := now
		store := session.NewStore(st, session.WithNowFunc(func() time.Time { return clock }))
		tr := validTriple(t, now.Add(time.Hour))
		require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))

		clock = now.Add(time.Minute)
		fresh := tokentest.Access(t, "user-1", now.Add(2*time.Hour))
		require.NoError(t, store.UpdateAccessToken(ctx, fresh))

		tokens, _ := store.Tokens()
		require.Equal(t, fresh, tokens.AccessToken)
		require.Equal(t, tr.refresh, tokens.RefreshToken)
		require.Equal(t, tr.id, tokens.IDToken)
		require.Equal(t, clock, store.Metadata().LastRefreshAt)
		require.Equal(t, now, store.Metadata().LoginAt)

		persisted, err := st.Get(ctx, session.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, fresh, persisted)
	})

	t.Run("invalid token leaves session untouched", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory())
		tr := validTriple(t, time.Now().Add(time.Hour))
		require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))

		err := store.UpdateAccessToken(ctx, "not-a-token")
		require.ErrorIs(t, err, errors.ErrInvalidTokenFormat)
		require.True(t, store.IsAuthenticated())
		require.Equal(t, tr.access, store.AccessToken())
	})

	t.Run("requires a session", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory())
		err := store.UpdateAccessToken(ctx, tokentest.Access(t, "u", time.Now().Add(time.Hour)))
		require.ErrorIs(t, err, errors.ErrNotAuthenticated)
	})
}

func TestClearAuthDataIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	store := session.NewStore(st)
	tr := validTriple(t, time.Now().Add(time.Hour))
	require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))

	require.NoError(t, store.ClearAuthData(ctx))
	first := store.State()
	firstKeys := st.Keys()

	require.NoError(t, store.ClearAuthData(ctx))
	require.Equal(t, first, store.State())
	require.Equal(t, firstKeys, st.Keys())
	require.Equal(t, session.Unauthenticated, store.State())
	require.Equal(t, session.Metadata{}, store.Metadata())
}

func TestInitializeFromStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("empty storage", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory())
		require.NoError(t, store.InitializeFromStorage(ctx))
		require.False(t, store.IsAuthenticated())
	})

	t.Run("partial triple is discarded", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, st.Set(ctx, map[string]string{
			session.AccessTokenKey: tokentest.Access(t, "u", time.Now().Add(time.Hour)),
		}))
		store := session.NewStore(st)
		require.NoError(t, store.InitializeFromStorage(ctx))
		require.False(t, store.IsAuthenticated())
		require.Empty(t, st.Keys())
	})

	t.Run("corrupt tokens are cleared", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, st.Set(ctx, map[string]string{
			session.AccessTokenKey:  "x",
			session.RefreshTokenKey: "y",
			session.IDTokenKey:      "z",
		}))
		store := session.NewStore(st)
		require.ErrorIs(t, store.InitializeFromStorage(ctx), errors.ErrInvalidTokenFormat)
		require.False(t, store.IsAuthenticated())
		require.Empty(t, st.Keys())
	})
}

func TestExpiryPredicates(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("expired id token keeps the session authenticated", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory(), session.WithNowFunc(func() time.Time { return now }))
		access := tokentest.Access(t, "u", now.Add(time.Hour))
		id := tokentest.ID(t, "u", now.Add(-10*time.Second))
		require.NoError(t, store.SetAuthData(ctx, access, tokentest.Refresh(), id))

		require.True(t, store.IsIDTokenExpired())
		require.False(t, store.IsAccessTokenExpired())
		require.True(t, store.IsAuthenticated())
		require.Equal(t, session.Expired, store.State())
	})

	t.Run("both tokens live", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory(), session.WithNowFunc(func() time.Time { return now }))
		access := tokentest.Access(t, "u", now.Add(time.Hour))
		id := tokentest.ID(t, "u", now.Add(time.Hour))
		require.NoError(t, store.SetAuthData(ctx, access, tokentest.Refresh(), id))

		require.Equal(t, session.Authenticated, store.State())
	})

	t.Run("expired access token moves to Expired", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory(), session.WithNowFunc(func() time.Time { return now }))
		access := tokentest.Access(t, "u", now.Add(-time.Second))
		id := tokentest.ID(t, "u", now.Add(time.Hour))
		require.NoError(t, store.SetAuthData(ctx, access, tokentest.Refresh(), id))

		require.True(t, store.IsAccessTokenExpired())
		require.True(t, store.IsAuthenticated())
		require.Equal(t, session.Expired, store.State())
	})

	t.Run("no session", func(t *testing.T) {
		store := session.NewStore(storage.NewMemory())
		require.True(t, store.IsAccessTokenExpired())
		require.True(t, store.IsIDTokenExpired())
		require.Equal(t, session.Unauthenticated, store.State())
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(storage.NewMemory())

	var mu sync.Mutex
	var events []bool
	unsubscribe := store.Subscribe(func(authenticated bool) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, authenticated)
	})

	tr := validTriple(t, time.Now().Add(time.Hour))
	require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))
	require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))
	require.NoError(t, store.UpdateAccessToken(ctx, tr.access))
	require.NoError(t, store.ClearAuthData(ctx))
	require.NoError(t, store.ClearAuthData(ctx))

	unsubscribe()
	require.NoError(t, store.SetAuthData(ctx, tr.access, tr.refresh, tr.id))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, events)
}
