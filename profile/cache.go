// Package profile caches the signed-in user's storefront profile. Fresh
// entries are served directly; stale entries are served at once while a
// background fetch replaces them.
package profile

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DataKey      = "storefront.user_data"
	TimestampKey = "storefront.user_data_timestamp"

	DefaultMaxAge = 5 * time.Minute

	refreshTimeout = 30 * time.Second
)

// Fetcher loads the current user's profile from the API.
type Fetcher interface {
	CurrentUser(ctx context.Context) (*Profile, error)
}

type Cache struct {
	storage storage.Store
	fetcher Fetcher
	maxAge  time.Duration
	now     func() time.Time

	sfGroup    singleflight.Group
	background sync.WaitGroup
}

type Option func(*Cache)

func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		c.maxAge = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(st storage.Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		storage: st,
		fetcher: fetcher,
		maxAge:  DefaultMaxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached profile, fetching it on a miss.
func (c *Cache) Get(ctx context.Context) (*Profile, error) {
	p, storedAt, err := c.load(ctx)
	if err != nil {
		log.Err(err).Msg("ignoring unreadable cached profile")
	}
	if p == nil {
		return c.Refresh(ctx)
	}

	if c.now().Sub(storedAt) >= c.maxAge {
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
			defer cancel()
			if _, err := c.Refresh(bg); err != nil {
				log.Err(err).Msg("background profile refresh failed")
			}
		}()
	}
	return p, nil
}

// Refresh fetches the profile and stores it. Concurrent calls share one
// request.
func (c *Cache) Refresh(ctx context.Context) (*Profile, error) {
	v, err, _ := c.sfGroup.Do("current-user", func() (any, error) {
		p, err := c.fetcher.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, p); err != nil {
			log.Err(err).Msg("failed to cache profile")
		}
		return p, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch profile")
	}
	return v.(*Profile), nil
}

func (c *Cache) Set(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "marshal profile")
	}
	return c.storage.Set(ctx, map[string]string{
		DataKey:      string(data),
		TimestampKey: strconv.FormatInt(c.now().UnixMilli(), 10),
	})
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.storage.Delete(ctx, DataKey, TimestampKey)
}

// Wait blocks until background refreshes have finished.
func (c *Cache) Wait() {
	c.background.Wait()
}

func (c *Cache) load(ctx context.Context) (*Profile, time.Time, error) {
	raw, err := c.storage.Get(ctx, DataKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var storedAt time.Time
	if ts, err := c.storage.Get(ctx, TimestampKey); err == nil {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			storedAt = time.UnixMilli(ms)
		}
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "decode cached profile")
	}
	return &p, storedAt, nil
}
