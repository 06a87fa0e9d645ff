// Package cart keeps the shopping cart. The local copy is always
// authoritative for the UI and survives restarts; when a session exists it is
// pushed to the server after a debounce, and merged with the server cart on
// login.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/api"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/storage"
	"github.com/rs/zerolog/log"
)

// ItemsKey is where the local cart is persisted.
const ItemsKey = "storefront.cart_items"

const (
	DefaultDebounce    = time.Second
	defaultSyncTimeout = 30 * time.Second
)

type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

type SyncState int

const (
	Idle SyncState = iota
	Scheduled
	Syncing
)

func (s SyncState) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Syncing:
		return "syncing"
	default:
		return "idle"
	}
}

// Remote is the server side of the cart.
type Remote interface {
	GetCart(ctx context.Context) (*api.CartResponse, error)
	PutCart(ctx context.Context, lines []api.CartLine) (*api.CartResponse, error)
	DeleteCart(ctx context.Context) error
	ValidateCart(ctx context.Context) (*api.ValidationResult, error)
}

type AuthState interface {
	IsAuthenticated() bool
}

type Subscriber interface {
	Subscribe(fn func(authenticated bool)) (unsubscribe func())
}

// ValidationError lists why the server rejected the cart for checkout.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cart validation failed: %v", e.Reasons)
}

func (e *ValidationError) Is(target error) bool {
	return target == errors.ErrValidationFailure
}

type Engine struct {
	mu       sync.Mutex
	items    []Item
	revision uint64
	lastSync time.Time

	// sync state machine: a pending timer (Scheduled) and an in-flight push
	// (Syncing) are tracked separately; at most one of each exists.
	timer    *time.Timer
	timerGen uint64
	syncing  bool
	closed   bool

	storage      storage.Store
	remote       Remote
	auth         AuthState
	debounce     time.Duration
	syncTimeout  time.Duration
	onMergeError func(error)
	now          func() time.Time

	unsubscribe func()
	background  sync.WaitGroup
}

type Option func(*Engine)

// WithDebounce sets how long mutations are collected before a push.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithMergeErrorHandler receives errors from merges started by a login.
// The default logs them.
func WithMergeErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onMergeError = fn
	}
}

func WithSyncTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.syncTimeout = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(st storage.Store, remote Remote, auth AuthState, opts ...Option) *Engine {
	e := &Engine{
		storage:     st,
		remote:      remote,
		auth:        auth,
		debounce:    DefaultDebounce,
		syncTimeout: defaultSyncTimeout,
		now:         time.Now,
		onMergeError: func(err error) {
			log.Err(err).Msg("cart merge failed")
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the in-memory cart with the persisted one. A corrupt entry is
// discarded and the cart starts empty.
func (e *Engine) Load(ctx context.Context) error {
	raw, err := e.storage.Get(ctx, ItemsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read cart")
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Err(err).Msg("discarding corrupt persisted cart")
		items = nil
	}

	e.mu.Lock()
	e.items = normalize(items)
	e.revision++
	e.mu.Unlock()
	return nil
}

// Watch follows the session: a login merges the local and server carts, a
// logout cancels any pending push.
func (e *Engine) Watch(s Subscriber) {
	e.mu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.mu.Unlock()

	unsubscribe := s.Subscribe(func(authenticated bool) {
		if !authenticated {
			e.mu.Lock()
			e.cancelScheduledLocked()
			e.mu.Unlock()
			return
		}
		e.background.Add(1)
		go func() {
			defer e.background.Done()
			ctx, cancel := context.WithTimeout(context.Background(), e.syncTimeout)
			defer cancel()
			if err := e.Merge(ctx); err != nil {
				e.onMergeError(err)
			}
		}()
	})

	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
}

// AddItem adds quantity of product, increasing an existing line. With a
// session the cart is pushed at once instead of after the debounce.
func (e *Engine) AddItem(ctx context.Context, product catalog.Product, quantity int) {
	if quantity <= 0 {
		return
	}

	e.mu.Lock()
	found := false
	for i := range e.items {
		if e.items[i].Product.ID == product.ID {
			e.items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		e.items = append(e.items, Item{Product: product, Quantity: quantity})
	}
	e.mutatedLocked(ctx)
	push := e.auth.IsAuthenticated()
	if push {
		e.cancelScheduledLocked()
	}
	e.mu.Unlock()

	if push {
		if err := e.Sync(ctx); err != nil {
			log.Err(err).Msg("cart sync failed")
		}
	}
}

func (e *Engine) RemoveItem(ctx context.Context, productID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.items {
		if e.items[i].Product.ID == productID {
			e.items = append(e.items[:i:i], e.items[i+1:]...)
			e.mutatedLocked(ctx)
			e.scheduleLocked()
			return
		}
	}
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (e *Engine) UpdateQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(ctx, productID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.items {
		if e.items[i].Product.ID == productID {
			e.items[i].Quantity = quantity
			e.mutatedLocked(ctx)
			e.scheduleLocked()
			return
		}
	}
}

// ClearCart empties the cart. With a session the server cart is deleted at
// once and a failure there is only logged.
func (e *Engine) ClearCart(ctx context.Context) {
	e.mu.Lock()
	e.items = nil
	e.mutatedLocked(ctx)
	e.cancelScheduledLocked()
	authenticated := e.auth.IsAuthenticated()
	e.mu.Unlock()

	if !authenticated {
		return
	}
	if err := e.remote.DeleteCart(ctx); err != nil {
		log.Err(err).Msg("failed to clear server cart")
		return
	}
	e.mu.Lock()
	e.lastSync = e.now()
	e.mu.Unlock()
}

// Sync pushes the local cart now. It is a no-op without a session or while
// another push is in flight. The server's answer replaces the local cart
// unless the cart changed while the push was in flight.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		log.Debug().Msg("cart sync already in flight, skipping")
		return nil
	}
	if !e.auth.IsAuthenticated() {
		e.mu.Unlock()
		return nil
	}
	e.syncing = true
	lines := toLines(e.items)
	rev := e.revision
	e.mu.Unlock()

	resp, err := e.remote.PutCart(ctx, lines)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false

	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSyncFailure, err)
	}
	e.lastSync = e.now()

	if e.revision != rev {
		// Edits made during the push have not reached the server yet.
		e.scheduleLocked()
		return nil
	}
	if resp != nil && resp.Items != nil {
		e.items = fromServer(resp.Items, e.items)
		e.persistLocked(ctx)
	}
	return nil
}

// Merge fetches the server cart, merges it with the local cart and pushes the
// result. Fetch errors are returned; push errors are logged.
func (e *Engine) Merge(ctx context.Context) error {
	if !e.auth.IsAuthenticated() {
		return errors.ErrNotAuthenticated
	}

	e.mu.Lock()
	e.cancelScheduledLocked()
	e.mu.Unlock()

	resp, err := e.remote.GetCart(ctx)
	if err != nil {
		return errors.Wrapf(err, "fetch server cart")
	}

	e.mu.Lock()
	server := fromServer(resp.Items, e.items)
	e.items = Merge(e.items, server)
	e.mutatedLocked(ctx)
	merged := len(e.items)
	e.mu.Unlock()

	log.Debug().Int("server", len(server)).Int("merged", merged).Msg("merged cart with server")

	if err := e.Sync(ctx); err != nil {
		log.Err(err).Msg("cart sync after merge failed")
	}
	return nil
}

// Validate asks the server whether the cart can be checked out. An invalid
// cart is returned together with a *ValidationError.
func (e *Engine) Validate(ctx context.Context) (*api.ValidationResult, error) {
	if !e.auth.IsAuthenticated() {
		return &api.ValidationResult{Valid: false, Errors: []string{"User not authenticated"}}, errors.ErrNotAuthenticated
	}
	result, err := e.remote.ValidateCart(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "validate cart")
	}
	if !result.Valid {
		return result, &ValidationError{Reasons: result.Errors}
	}
	return result, nil
}

// Close stops following the session, waits for background merges and pushes,
// then flushes a push that was scheduled or in flight.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	flush := e.timer != nil || e.syncing
	e.closed = true
	e.cancelScheduledLocked()
	e.mu.Unlock()

	e.background.Wait()
	if flush {
		return e.Sync(ctx)
	}
	return nil
}

func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out
}

func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, item := range e.items {
		total += item.Quantity
	}
	return total
}

func (e *Engine) TotalPrice() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0.0
	for _, item := range e.items {
		total += item.Product.Price * float64(item.Quantity)
	}
	return total
}

func (e *Engine) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items) == 0
}

func (e *Engine) SyncState() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.syncing:
		return Syncing
	case e.timer != nil:
		return Scheduled
	default:
		return Idle
	}
}

// LastSyncTime is zero until the first successful push.
func (e *Engine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

func (e *Engine) mutatedLocked(ctx context.Context) {
	e.revision++
	e.persistLocked(ctx)
}

func (e *Engine) persistLocked(ctx context.Context) {
	items := e.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		log.Err(err).Msg("failed to encode cart")
		return
	}
	if err := e.storage.Set(ctx, map[string]string{ItemsKey: string(data)}); err != nil {
		log.Err(err).Msg("failed to persist cart")
	}
}

// scheduleLocked (re)starts the debounce timer. Nothing is scheduled without
// a session.
func (e *Engine) scheduleLocked() {
	if e.closed || !e.auth.IsAuthenticated() {
		return
	}
	e.cancelScheduledLocked()
	gen := e.timerGen
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fire(gen)
	})
}

func (e *Engine) cancelScheduledLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.background.Add(1)
	e.mu.Unlock()
	defer e.background.Done()

	ctx, cancel := context.WithTimeout(context.Background(), e.syncTimeout)
	defer cancel()
	if err := e.Sync(ctx); err != nil {
		log.Err(err).Msg("cart sync failed")
	}
}

func toLines(items []Item) []api.CartLine {
	lines := make([]api.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, api.CartLine{ProductID: item.Product.ID, Quantity: item.Quantity})
	}
	return lines
}

// fromServer converts server lines, filling in products the server did not
// embed from the local cart.
func fromServer(serverItems []api.ServerCartItem, local []Item) []Item {
	known := make(map[int64]catalog.Product, len(local))
	for _, item := range local {
		known[item.Product.ID] = item.Product
	}
	items := make([]Item, 0, len(serverItems))
	for _, si := range serverItems {
		product, ok := known[si.ProductID]
		if si.Product != nil {
			product = *si.Product
		} else if !ok {
			product = catalog.Product{ID: si.ProductID}
		}
		product.ID = si.ProductID
		items = append(items, Item{Product: product, Quantity: si.Quantity})
	}
	return normalize(items)
}

// normalize drops non-positive quantities and folds duplicate products into
// their first line.
func normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i, ok := index[item.Product.ID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.Product.ID] = len(out)
		out = append(out, item)
	}
	return out
}
