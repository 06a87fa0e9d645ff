package cart_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/api"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/tokentest"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

// fakeRemote is an in-memory server cart that echoes what it stores.
type fakeRemote struct {
	mu         sync.Mutex
	server     []api.ServerCartItem
	puts       [][]api.CartLine
	deletes    int
	putErr     error
	getErr     error
	validation *api.ValidationResult
	putGate    chan struct{}
}

func (r *fakeRemote) GetCart(context.Context) (*api.CartResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return &api.CartResponse{Items: append([]api.ServerCartItem(nil), r.server...)}, nil
}

func (r *fakeRemote) PutCart(_ context.Context, lines []api.CartLine) (*api.CartResponse, error) {
	r.mu.Lock()
	gate := r.putGate
	r.puts = append(r.puts, lines)
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return nil, r.putErr
	}
	r.server = r.server[:0]
	for _, l := range lines {
		r.server = append(r.server, api.ServerCartItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return &api.CartResponse{Items: append([]api.ServerCartItem(nil), r.server...)}, nil
}

func (r *fakeRemote) DeleteCart(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	r.server = nil
	return nil
}

func (r *fakeRemote) ValidateCart(context.Context) (*api.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validation, nil
}

func (r *fakeRemote) putCalls() [][]api.CartLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]api.CartLine(nil), r.puts...)
}

type fakeAuth struct {
	authenticated atomic.Bool
}

func (a *fakeAuth) IsAuthenticated() bool { return a.authenticated.Load() }

func product(id int64, price float64) catalog.Product {
	return catalog.Product{ID: id, Name: fmt.Sprintf("product-%d", id), Price: price}
}

func newEngine(t *testing.T, authenticated bool) (*cart.Engine, *fakeRemote, *fakeAuth, *storage.Memory) {
	t.Helper()
	st := storage.NewMemory()
	remote := &fakeRemote{}
	auth := &fakeAuth{}
	auth.authenticated.Store(authenticated)
	e := cart.NewEngine(st, remote, auth, cart.WithDebounce(testDebounce))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, remote, auth, st
}

func TestLocalMutations(t *testing.T) {
	ctx := context.Background()
	e, remote, _, st := newEngine(t, false)

	e.AddItem(ctx, product(1, 10), 2)
	e.AddItem(ctx, product(2, 5), 1)
	e.AddItem(ctx, product(1, 10), 1)
	e.AddItem(ctx, product(3, 1), 0)

	require.Equal(t, 4, e.TotalItems())
	require.InDelta(t, 35.0, e.TotalPrice(), 0.001)
	require.Len(t, e.Items(), 2)

	e.UpdateQuantity(ctx, 2, 4)
	require.Equal(t, 7, e.TotalItems())

	e.UpdateQuantity(ctx, 2, 0)
	require.Len(t, e.Items(), 1)

	e.RemoveItem(ctx, 1)
	e.RemoveItem(ctx, 99)
	require.True(t, e.IsEmpty())

	raw, err := st.Get(ctx, cart.ItemsKey)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, raw)

	require.Equal(t, cart.Idle, e.SyncState())
	require.Empty(t, remote.putCalls())
}

func TestTotalsProperty(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newEngine(t, false)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := int64(rng.Intn(6))
		switch rng.Intn(4) {
		case 0, 1:
			e.AddItem(ctx, product(id, 1), rng.Intn(4))
		case 2:
			e.UpdateQuantity(ctx, id, rng.Intn(5)-1)
		default:
			e.RemoveItem(ctx, id)
		}

		items := e.Items()
		sum := 0
		seen := map[int64]bool{}
		for _, it := range items {
			require.False(t, seen[it.Product.ID])
			require.Positive(t, it.Quantity)
			seen[it.Product.ID] = true
			sum += it.Quantity
		}
		require.Equal(t, sum, e.TotalItems())
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("restores persisted cart", func(t *testing.T) {
		e, _, _, st := newEngine(t, false)
		e.AddItem(ctx, product(1, 10), 2)

		reloaded := cart.NewEngine(st, &fakeRemote{}, &fakeAuth{})
		require.NoError(t, reloaded.Load(ctx))
		require.Equal(t, e.Items(), reloaded.Items())
	})

	t.Run("corrupt cart starts empty", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, st.Set(ctx, map[string]string{cart.ItemsKey: "{nope"}))
		e := cart.NewEngine(st, &fakeRemote{}, &fakeAuth{})
		require.NoError(t, e.Load(ctx))
		require.True(t, e.IsEmpty())
	})
}

func TestDebounce(t *testing.T) {
	ctx := context.Background()
	e, remote, _, _ := newEngine(t, true)

	// Seed without triggering the immediate push path.
	e.AddItem(ctx, product(1, 1), 1)
	require.Eventually(t, func() bool { return len(remote.putCalls()) == 1 }, time.Second, time.Millisecond)

	for q := 2; q <= 10; q++ {
		e.UpdateQuantity(ctx, 1, q)
	}
	require.Equal(t, cart.Scheduled, e.SyncState())

	require.Eventually(t, func() bool { return len(remote.putCalls()) == 2 }, time.Second, time.Millisecond)
	time.Sleep(3 * testDebounce)

	puts := remote.putCalls()
	require.Len(t, puts, 2)
	require.Equal(t, []api.CartLine{{ProductID: 1, Quantity: 10}}, puts[1])
	require.Equal(t, cart.Idle, e.SyncState())
	require.False(t, e.LastSyncTime().IsZero())
}

func TestAddItemPushesImmediately(t *testing.T) {
	ctx := context.Background()
	e, remote, _, _ := newEngine(t, true)

	e.AddItem(ctx, product(5, 3), 2)
	require.Equal(t, [][]api.CartLine{{{ProductID: 5, Quantity: 2}}}, remote.putCalls())
	require.Equal(t, cart.Idle, e.SyncState())
	require.Equal(t, "product-5", e.Items()[0].Product.Name)
}

func TestSyncFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	e, remote, _, _ := newEngine(t, true)
	remote.putErr = fmt.Errorf("boom")

	e.AddItem(ctx, product(1, 1), 1)
	require.Equal(t, 1, e.TotalItems())
	require.True(t, e.LastSyncTime().IsZero())

	require.ErrorIs(t, e.Sync(ctx), errors.ErrSyncFailure)
}

func TestInFlightSyncDiscardsStaleEcho(t *testing.T) {
	ctx := context.Background()
	e, remote, _, _ := newEngine(t, true)
	gate := make(chan struct{})
	remote.mu.Lock()
	remote.putGate = gate
	remote.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.AddItem(ctx, product(1, 1), 1)
	}()
	require.Eventually(t, func() bool { return e.SyncState() == cart.Syncing }, time.Second, time.Millisecond)

	// A second push while one is in flight is dropped.
	require.NoError(t, e.Sync(ctx))
	e.UpdateQuantity(ctx, 1, 4)

	remote.mu.Lock()
	remote.putGate = nil
	remote.mu.Unlock()
	close(gate)
	<-done

	// The echo of quantity 1 is discarded and the edit is pushed afterwards.
	require.Equal(t, 4, e.TotalItems())
	require.Eventually(t, func() bool {
		puts := remote.putCalls()
		return len(puts) == 2 && puts[1][0].Quantity == 4
	}, time.Second, time.Millisecond)
	require.Equal(t, 4, e.TotalItems())
}

func TestClearCart(t *testing.T) {
	ctx := context.Background()

	t.Run("authenticated deletes server cart", func(t *testing.T) {
		e, remote, _, _ := newEngine(t, true)
		e.AddItem(ctx, product(1, 1), 1)
		e.UpdateQuantity(ctx, 1, 3)
		e.ClearCart(ctx)

		require.True(t, e.IsEmpty())
		require.Equal(t, cart.Idle, e.SyncState())
		require.Equal(t, 1, remote.deletes)
		time.Sleep(3 * testDebounce)
		require.Len(t, remote.putCalls(), 1)
	})

	t.Run("anonymous stays local", func(t *testing.T) {
		e, remote, _, _ := newEngine(t, false)
		e.AddItem(ctx, product(1, 1), 1)
		e.ClearCart(ctx)
		require.True(t, e.IsEmpty())
		require.Zero(t, remote.deletes)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("not authenticated", func(t *testing.T) {
		e, _, _, _ := newEngine(t, false)
		result, err := e.Validate(ctx)
		require.ErrorIs(t, err, errors.ErrNotAuthenticated)
		require.False(t, result.Valid)
		require.Equal(t, []string{"User not authenticated"}, result.Errors)
	})

	t.Run("invalid cart", func(t *testing.T) {
		e, remote, _, _ := newEngine(t, true)
		remote.validation = &api.ValidationResult{Valid: false, Errors: []string{"product 1 out of stock"}}
		result, err := e.Validate(ctx)
		require.ErrorIs(t, err, errors.ErrValidationFailure)

		var verr *cart.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Equal(t, []string{"product 1 out of stock"}, verr.Reasons)
		require.False(t, result.Valid)
	})

	t.Run("valid cart", func(t *testing.T) {
		e, remote, _, _ := newEngine(t, true)
		remote.validation = &api.ValidationResult{Valid: true}
		result, err := e.Validate(ctx)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})
}

func TestCloseFlushesScheduledSync(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	remote := &fakeRemote{}
	auth := &fakeAuth{}
	auth.authenticated.Store(true)
	e := cart.NewEngine(st, remote, auth, cart.WithDebounce(time.Hour))

	e.AddItem(ctx, product(1, 1), 1)
	e.UpdateQuantity(ctx, 1, 2)
	require.Equal(t, cart.Scheduled, e.SyncState())

	require.NoError(t, e.Close(ctx))
	puts := remote.putCalls()
	require.Len(t, puts, 2)
	require.Equal(t, 2, puts[1][0].Quantity)
}

func TestCloseWaitsForTimerSync(t *testing.T) {
	ctx := context.Background()
	e, remote, _, _ := newEngine(t, true)
	e.AddItem(ctx, product(1, 1), 1)

	gate := make(chan struct{})
	remote.mu.Lock()
	remote.putGate = gate
	remote.mu.Unlock()

	e.UpdateQuantity(ctx, 1, 3)
	require.Eventually(t, func() bool { return e.SyncState() == cart.Syncing }, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- e.Close(ctx) }()

	select {
	case <-closed:
		t.Fatal("Close returned while a push was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	remote.mu.Lock()
	remote.putGate = nil
	remote.mu.Unlock()
	close(gate)

	require.NoError(t, <-closed)
	puts := remote.putCalls()
	require.GreaterOrEqual(t, len(puts), 2)
	require.Equal(t, 3, puts[len(puts)-1][0].Quantity)
	require.Equal(t, cart.Idle, e.SyncState())
}

func TestLoginScenario(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	sess := session.NewStore(st)
	remote := &fakeRemote{server: []api.ServerCartItem{{ProductID: 2, Quantity: 1, Product: &catalog.Product{ID: 2, Name: "server", Price: 4}}}}

	mergeErrs := make(chan error, 1)
	e := cart.NewEngine(st, remote, sess,
		cart.WithDebounce(testDebounce),
		cart.WithMergeErrorHandler(func(err error) { mergeErrs <- err }),
	)
	e.Watch(sess)
	t.Cleanup(func() { _ = e.Close(ctx) })

	e.AddItem(ctx, product(1, 10), 2)
	require.Equal(t, []cart.Item{{Product: product(1, 10), Quantity: 2}}, e.Items())
	require.Empty(t, remote.putCalls())

	exp := time.Now().Add(time.Hour)
	require.NoError(t, sess.SetAuthData(ctx, tokentest.Access(t, "u", exp), tokentest.Refresh(), tokentest.ID(t, "u", exp)))

	require.Eventually(t, func() bool { return len(remote.putCalls()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, []api.CartLine{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 2}}, remote.putCalls()[0])

	require.Eventually(t, func() bool { return e.SyncState() == cart.Idle }, time.Second, time.Millisecond)
	items := e.Items()
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].Product.ID)
	require.Equal(t, "server", items[0].Product.Name)
	require.Equal(t, 1, items[0].Quantity)
	require.Equal(t, int64(1), items[1].Product.ID)
	require.Equal(t, 2, items[1].Quantity)

	time.Sleep(3 * testDebounce)
	require.Len(t, remote.putCalls(), 1)
	require.Empty(t, mergeErrs)
}

func TestLogoutCancelsPendingSync(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	sess := session.NewStore(st)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, sess.SetAuthData(ctx, tokentest.Access(t, "u", exp), tokentest.Refresh(), tokentest.ID(t, "u", exp)))

	remote := &fakeRemote{}
	e := cart.NewEngine(st, remote, sess, cart.WithDebounce(testDebounce))
	e.Watch(sess)
	t.Cleanup(func() { _ = e.Close(ctx) })

	e.AddItem(ctx, product(1, 1), 1)
	e.UpdateQuantity(ctx, 1, 5)
	require.Equal(t, cart.Scheduled, e.SyncState())

	require.NoError(t, sess.ClearAuthData(ctx))
	require.Equal(t, cart.Idle, e.SyncState())
	time.Sleep(3 * testDebounce)
	require.Len(t, remote.putCalls(), 1)
	require.Equal(t, 5, e.TotalItems())
}

func TestMergeFetchError(t *testing.T) {
	e, remote, _, _ := newEngine(t, true)
	remote.getErr = fmt.Errorf("offline")
	require.Error(t, e.Merge(context.Background()))

	e2, _, _, _ := newEngine(t, false)
	require.ErrorIs(t, e2.Merge(context.Background()), errors.ErrNotAuthenticated)
}

func TestPersistedFormat(t *testing.T) {
	ctx := context.Background()
	e, _, _, st := newEngine(t, false)
	e.AddItem(ctx, product(1, 2.5), 3)

	raw, err := st.Get(ctx, cart.ItemsKey)
	require.NoError(t, err)
	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	require.Len(t, items, 1)
	require.Equal(t, float64(3), items[0]["quantity"])
}
