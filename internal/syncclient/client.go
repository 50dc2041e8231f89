// Package syncclient bridges a terminal's local cart to the cart
// reconciliation API without duplicate or lost writes. One client instance
// serves one order target at a time; its state machine guarantees at most one
// create-or-sync operation is in flight, and triggers arriving while busy are
// dropped rather than queued.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"pos-service/internal/localstore"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the sync client's single-flight state
type State int

const (
	StateIdle State = iota
	StateCreating
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreating:
		return "creating"
	case StateSyncing:
		return "syncing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LocalCartItem is one entry of the locally persisted cart
type LocalCartItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartItemInput is a line item sent on cart creation
type CartItemInput struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// RemoteCart is the server-side cart as seen by the sync client
type RemoteCart struct {
	CartID int64
	Items  []RemoteItem
}

// RemoteItem is one server-side line item keyed by global product id
type RemoteItem struct {
	ProductID int64
	Quantity  int
}

// CartAPI drives the cart reconciliation service over the network
type CartAPI interface {
	CreateCart(ctx context.Context, target models.OrderTarget, restaurantID int64, customerID *int64, items []CartItemInput) (cartID, orderTypeID int64, err error)
	UpdateItemQuantity(ctx context.Context, cartID, productID, restaurantID int64, quantity int, unitPrice float64) error
	RemoveItem(ctx context.Context, cartID, productID, restaurantID int64) error
	ActiveCart(ctx context.Context, target models.OrderTarget) (*RemoteCart, error)
}

// Client reconciles the local cart with the server
type Client struct {
	api    CartAPI
	local  localstore.Store
	key    string
	logger *zap.Logger
	id     string

	mu           sync.Mutex
	state        State
	target       models.OrderTarget
	restaurantID int64
	customerID   *int64
	cartID       int64
	synced       map[int64]int

	// gen increments whenever the cart binding is discarded (target switch
	// or Reset). An in-flight create or sync that started under an older
	// generation drops its result instead of re-binding the old cart.
	gen uint64
}

// New creates a sync client persisting the local cart under key in local
func New(api CartAPI, local localstore.Store, key string) *Client {
	return &Client{
		api:    api,
		local:  local,
		key:    key,
		logger: util.GetLogger(),
		id:     uuid.New().String(),
		synced: make(map[int64]int),
	}
}

// SetTarget points the client at an order target. Switching targets discards
// the known cart id and synced snapshot; the server-side cart is untouched
// and rediscoverable via Recover.
func (c *Client) SetTarget(target models.OrderTarget, restaurantID int64, customerID *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.target == target && c.restaurantID == restaurantID {
		c.customerID = customerID
		return
	}

	c.target = target
	c.restaurantID = restaurantID
	c.customerID = customerID
	c.cartID = 0
	c.synced = make(map[int64]int)
	c.gen++
}

// LocalCart reads the locally persisted cart
func (c *Client) LocalCart() ([]LocalCartItem, error) {
	data, err := c.local.Get(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read local cart: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var items []LocalCartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("corrupt local cart: %w", err)
	}
	return items, nil
}

// SaveLocalCart persists the local cart
func (c *Client) SaveLocalCart(items []LocalCartItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal local cart: %w", err)
	}
	return c.local.Set(c.key, data)
}

// Reconcile pushes the local cart's state to the server. Call it on every
// local cart change; a call arriving while a reconcile is in flight is
// dropped. A failed attempt is abandoned (no retry, local cart intact) and
// the next trigger picks up where the snapshot left off.
func (c *Client) Reconcile(ctx context.Context) error {
	c.mu.Lock()

	if c.state != StateIdle {
		c.mu.Unlock()
		util.SyncAttemptsDroppedTotal.Inc()
		c.logger.Debug("Sync trigger dropped, reconcile in flight",
			zap.String("client_id", c.id))
		return nil
	}
	if !c.target.Valid() || c.restaurantID <= 0 {
		c.mu.Unlock()
		return nil
	}

	local, err := c.LocalCart()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if len(local) == 0 {
		c.mu.Unlock()
		return nil
	}

	if c.cartID == 0 {
		c.state = StateCreating
		target, restaurantID, customerID, gen := c.target, c.restaurantID, c.customerID, c.gen
		c.mu.Unlock()
		return c.create(ctx, target, restaurantID, customerID, gen, local)
	}

	changed, removed := diff(local, c.synced)
	if len(changed) == 0 && len(removed) == 0 {
		c.mu.Unlock()
		return nil
	}

	c.state = StateSyncing
	cartID, restaurantID, gen := c.cartID, c.restaurantID, c.gen
	c.mu.Unlock()
	return c.sync(ctx, cartID, restaurantID, gen, changed, removed)
}

// Recover rediscovers the active server cart for the current target after a
// Reset or restart, rebuilding the synced snapshot from server state.
func (c *Client) Recover(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || c.cartID != 0 || !c.target.Valid() {
		c.mu.Unlock()
		return nil
	}
	target := c.target
	c.mu.Unlock()

	remote, err := c.api.ActiveCart(ctx, target)
	if err != nil {
		c.logger.Warn("Active cart lookup failed", zap.Error(err))
		return err
	}
	if remote == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The target may have changed while the lookup was in flight.
	if c.state != StateIdle || c.cartID != 0 || c.target != target {
		return nil
	}

	c.cartID = remote.CartID
	c.synced = make(map[int64]int, len(remote.Items))
	for _, item := range remote.Items {
		c.synced[item.ProductID] = item.Quantity
	}

	c.logger.Info("Recovered active cart",
		zap.String("client_id", c.id),
		zap.Int64("cart_id", remote.CartID),
		zap.Int("items", len(remote.Items)))
	return nil
}

func (c *Client) create(ctx context.Context, target models.OrderTarget, restaurantID int64, customerID *int64, gen uint64, local []LocalCartItem) error {
	defer c.toIdle()

	items := make([]CartItemInput, len(local))
	for i, item := range local {
		items[i] = CartItemInput{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Subtotal:  roundCents(float64(item.Quantity) * item.Price),
		}
	}

	cartID, _, err := c.api.CreateCart(ctx, target, restaurantID, customerID, items)
	if err != nil {
		c.logger.Warn("Cart create failed, attempt abandoned",
			zap.String("client_id", c.id),
			zap.Error(err))
		return err
	}

	c.mu.Lock()
	// The binding was discarded while the create was in flight; adopting
	// the result would point the new target at the old target's cart.
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Info("Cart binding discarded during create, result dropped",
			zap.String("client_id", c.id),
			zap.Int64("cart_id", cartID))
		return nil
	}
	c.cartID = cartID
	c.synced = make(map[int64]int, len(local))
	for _, item := range local {
		c.synced[item.ID] = item.Quantity
	}
	c.mu.Unlock()

	c.logger.Info("Cart created",
		zap.String("client_id", c.id),
		zap.Int64("cart_id", cartID),
		zap.Int("items", len(local)))
	return nil
}

// sync pushes changed items sequentially; parallel calls would interleave
// writes to the same cart. Each successful call updates the snapshot, so a
// mid-sequence failure resumes from the failed item on the next trigger.
func (c *Client) sync(ctx context.Context, cartID, restaurantID int64, gen uint64, changed []LocalCartItem, removed []int64) error {
	defer c.toIdle()

	for _, item := range changed {
		if err := c.api.UpdateItemQuantity(ctx, cartID, item.ID, restaurantID, item.Quantity, item.Price); err != nil {
			c.logger.Warn("Item sync failed, attempt abandoned",
				zap.String("client_id", c.id),
				zap.Int64("product_id", item.ID),
				zap.Error(err))
			return err
		}
		if !c.markSynced(gen, item.ID, item.Quantity, false) {
			return nil
		}
	}

	for _, productID := range removed {
		if err := c.api.RemoveItem(ctx, cartID, productID, restaurantID); err != nil {
			c.logger.Warn("Item removal sync failed, attempt abandoned",
				zap.String("client_id", c.id),
				zap.Int64("product_id", productID),
				zap.Error(err))
			return err
		}
		if !c.markSynced(gen, productID, 0, true) {
			return nil
		}
	}

	return nil
}

// markSynced records one successful item call in the snapshot. It reports
// false when the binding was discarded mid-sync, in which case the snapshot
// belongs to the new binding and the remaining calls are abandoned.
func (c *Client) markSynced(gen uint64, productID int64, quantity int, remove bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		c.logger.Info("Cart binding discarded during sync, remaining calls dropped",
			zap.String("client_id", c.id))
		return false
	}
	if remove {
		delete(c.synced, productID)
	} else {
		c.synced[productID] = quantity
	}
	return true
}

// Reset forgets the server cart and clears the locally persisted cart,
// typically after the order was finalized. The next Reconcile starts a fresh
// create; Recover can re-adopt a server cart that still exists.
func (c *Client) Reset() error {
	c.mu.Lock()
	c.cartID = 0
	c.synced = make(map[int64]int)
	c.gen++
	c.mu.Unlock()
	return c.local.Delete(c.key)
}

func (c *Client) toIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// State returns the client's current single-flight state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CartID returns the known server cart id, zero when none
func (c *Client) CartID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartID
}

// SyncedSnapshot returns a copy of the synced (product id, quantity) snapshot
func (c *Client) SyncedSnapshot() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int64]int, len(c.synced))
	for productID, quantity := range c.synced {
		out[productID] = quantity
	}
	return out
}

// diff computes which local items differ from the synced snapshot, and which
// snapshot entries no longer exist locally.
func diff(local []LocalCartItem, synced map[int64]int) (changed []LocalCartItem, removed []int64) {
	seen := make(map[int64]bool, len(local))
	for _, item := range local {
		seen[item.ID] = true
		if quantity, ok := synced[item.ID]; !ok || quantity != item.Quantity {
			changed = append(changed, item)
		}
	}
	for productID := range synced {
		if !seen[productID] {
			removed = append(removed, productID)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return changed, removed
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
