package profile_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/profile"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int32
	email atomic.Value
	err   error
	delay time.Duration
}

func (f *fakeFetcher) CurrentUser(context.Context) (*profile.Profile, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	email, _ := f.email.Load().(string)
	return &profile.Profile{ID: 1, Email: email, IsActive: true}, nil
}

func newFetcher(email string) *fakeFetcher {
	f := &fakeFetcher{}
	f.email.Store(email)
	return f
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss fetches and stores", func(t *testing.T) {
		st := storage.NewMemory()
		f := newFetcher("a@example.com")
		c := profile.NewCache(st, f)

		p, err := c.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "a@example.com", p.Email)
		require.ElementsMatch(t, []string{profile.DataKey, profile.TimestampKey}, st.Keys())

		_, err = c.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
	})

	t.Run("stale hit is served while refreshing", func(t *testing.T) {
		clk := &clock{now: time.Now()}
		f := newFetcher("old@example.com")
		c := profile.NewCache(storage.NewMemory(), f, profile.WithNowFunc(clk.Now))

		_, err := c.Get(ctx)
		require.NoError(t, err)

		f.email.Store("new@example.com")
		clk.Advance(profile.DefaultMaxAge)

		p, err := c.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "old@example.com", p.Email)

		c.Wait()
		require.Equal(t, int32(2), atomic.LoadInt32(&f.calls))

		p, err = c.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "new@example.com", p.Email)
	})

	t.Run("concurrent refreshes share a request", func(t *testing.T) {
		f := newFetcher("a@example.com")
		f.delay = 50 * time.Millisecond
		c := profile.NewCache(storage.NewMemory(), f)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Refresh(ctx)
				require.NoError(t, err)
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
	})

	t.Run("fetch error on miss", func(t *testing.T) {
		f := newFetcher("")
		f.err = fmt.Errorf("offline")
		c := profile.NewCache(storage.NewMemory(), f)
		_, err := c.Get(ctx)
		require.Error(t, err)
	})

	t.Run("clear", func(t *testing.T) {
		st := storage.NewMemory()
		c := profile.NewCache(st, newFetcher("a@example.com"))
		_, err := c.Get(ctx)
		require.NoError(t, err)
		require.NoError(t, c.Clear(ctx))
		require.Empty(t, st.Keys())
	})
}
