package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/redisclient"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService owns the create/add/update/remove lifecycle of carts and their
// line items, and the derived occupancy state of tables.
type CartService struct {
	store         *store.Store
	redis         *redisclient.Client
	resolver      *CatalogResolver
	publisher     *broker.EventPublisher
	createLockTTL time.Duration
	logger        *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(
	store *store.Store,
	redis *redisclient.Client,
	resolver *CatalogResolver,
	publisher *broker.EventPublisher,
	createLockTTL time.Duration,
) *CartService {
	return &CartService{
		store:         store,
		redis:         redis,
		resolver:      resolver,
		publisher:     publisher,
		createLockTTL: createLockTTL,
		logger:        util.GetLogger(),
	}
}

// CreateCartRequest represents a request to create a cart for an order target
type CreateCartRequest struct {
	Target       models.OrderTarget
	RestaurantID int64
	CustomerID   *int64
	Items        []LineItemRequest
}

// LineItemRequest represents one line item in a cart creation
type LineItemRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// CreateCartResponse represents the result of a cart creation. Existing is
// true when the request raced another create and resolved to the cart that
// won.
type CreateCartResponse struct {
	CartID      int64
	OrderTypeID int64
	Existing    bool
}

// LineItemMutation identifies a line item change. Either the restaurant-
// scoped product id is given directly, or a global product id plus the
// restaurant id to resolve it with.
type LineItemMutation struct {
	CartID              int64
	RestaurantProductID int64
	ProductID           int64
	RestaurantID        int64
	Quantity            int
	UnitPrice           float64
}

// CreateCart creates the order type, the cart and all initial line items.
// Every product must resolve for the restaurant or the whole operation is
// rejected with the failing ids. A concurrent create for the same target is
// resolved via the store's uniqueness constraint: the loser falls back to the
// active cart the winner created.
func (s *CartService) CreateCart(ctx context.Context, req *CreateCartRequest) (*CreateCartResponse, error) {
	ctx, span := util.StartSpan(ctx, "CartService.CreateCart")
	defer span.End()

	if !req.Target.Valid() {
		util.CartsCreateRejectedTotal.WithLabelValues("invalid_target").Inc()
		return nil, ErrInvalidTarget
	}
	if len(req.Items) == 0 {
		util.CartsCreateRejectedTotal.WithLabelValues("no_items").Inc()
		return nil, fmt.Errorf("cart creation requires at least one item")
	}

	productIDs := make([]int64, len(req.Items))
	for i, item := range req.Items {
		productIDs[i] = item.ProductID
	}
	mapping := s.resolver.ResolveProducts(ctx, req.RestaurantID, productIDs)

	items, missing := buildCartItems(req.Items, mapping)
	if len(missing) > 0 {
		util.CartsCreateRejectedTotal.WithLabelValues("unmapped_products").Inc()
		return nil, &UnmappedProductsError{ProductIDs: missing}
	}

	lockKey := fmt.Sprintf("cart-create:%s:%d", req.Target.Kind, req.Target.ID)
	acquired, err := s.redis.AcquireLock(ctx, lockKey, s.createLockTTL)
	if err != nil {
		s.logger.Warn("Create lock unavailable, relying on store constraint", zap.Error(err))
	} else if !acquired {
		// Another create for this target is in flight. If its cart is
		// already visible, reuse it; otherwise proceed and let the
		// uniqueness constraint arbitrate.
		if existing, err := s.store.GetActiveCartByTarget(ctx, req.Target); err == nil && existing != nil {
			util.DuplicateCreateFallbacksTotal.Inc()
			s.logger.Info("Create resolved to in-flight cart",
				zap.Int64("cart_id", existing.ID))
			return &CreateCartResponse{CartID: existing.ID, OrderTypeID: existing.OrderTypeID, Existing: true}, nil
		}
	} else {
		defer func() {
			if err := s.redis.ReleaseLock(context.Background(), lockKey); err != nil {
				s.logger.Warn("Failed to release create lock", zap.Error(err))
			}
		}()
	}

	cart := &models.Cart{
		RestaurantID: req.RestaurantID,
		CustomerID:   req.CustomerID,
	}

	if err := s.store.CreateCartTx(ctx, req.Target, cart, items); err != nil {
		if store.IsUniqueViolation(err) {
			existing, lookupErr := s.store.GetActiveCartByTarget(ctx, req.Target)
			if lookupErr == nil && existing != nil {
				util.DuplicateCreateFallbacksTotal.Inc()
				s.logger.Info("Duplicate create detected, falling back to active cart",
					zap.Int64("cart_id", existing.ID),
					zap.String("target_kind", req.Target.Kind),
					zap.Int64("target_id", req.Target.ID))
				return &CreateCartResponse{CartID: existing.ID, OrderTypeID: existing.OrderTypeID, Existing: true}, nil
			}
		}
		util.CartsCreateRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	util.CartsCreatedTotal.Inc()
	s.logger.Info("Cart created",
		zap.Int64("cart_id", cart.ID),
		zap.String("target_kind", req.Target.Kind),
		zap.Int64("target_id", req.Target.ID))

	if req.Target.Kind == models.TargetKindTable {
		if err := s.store.UpdateTableStatus(ctx, req.Target.ID, models.TableStatusOccupied); err != nil {
			s.reportDrift(ctx, "table_occupy", cart.ID, req.Target.ID, req.RestaurantID, err)
		}
	}

	eventItems := make([]models.CartItemData, len(items))
	for i, item := range items {
		eventItems[i] = models.CartItemData{
			RestaurantProductID: item.RestaurantProductID,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
		}
	}
	event := &models.CartCreatedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeCartCreated),
		CartID:       cart.ID,
		OrderTypeID:  cart.OrderTypeID,
		RestaurantID: cart.RestaurantID,
		Target:       req.Target,
		Items:        eventItems,
	}
	if err := s.publisher.PublishCartCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartCreated event", zap.Error(err))
	}

	return &CreateCartResponse{CartID: cart.ID, OrderTypeID: cart.OrderTypeID}, nil
}

// AddItem adds quantity to a line item, summing into the existing row for the
// (cart, product) pair when one exists.
func (s *CartService) AddItem(ctx context.Context, m *LineItemMutation) error {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	scopedID, err := s.resolveScoped(ctx, m)
	if err != nil {
		return err
	}
	cart, err := s.activeCart(ctx, m.CartID)
	if err != nil {
		return err
	}

	existing, err := s.store.GetCartItem(ctx, m.CartID, scopedID)
	if err != nil {
		return fmt.Errorf("failed to look up cart item: %w", err)
	}

	op := models.ItemOpAdded
	quantity := m.Quantity
	if existing != nil {
		quantity = existing.Quantity + m.Quantity
		if err := s.store.UpdateCartItem(ctx, existing.ID, quantity, lineSubtotal(quantity, m.UnitPrice)); err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		op = models.ItemOpUpdated
	} else {
		count, err := s.store.CountCartItems(ctx, m.CartID)
		if err != nil {
			return fmt.Errorf("failed to count cart items: %w", err)
		}

		item := &models.CartItem{
			CartID:              m.CartID,
			RestaurantProductID: scopedID,
			Quantity:            m.Quantity,
			UnitPrice:           m.UnitPrice,
			Subtotal:            lineSubtotal(m.Quantity, m.UnitPrice),
		}
		if err := s.store.InsertCartItem(ctx, item); err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}

		// First line item landing on a previously empty table cart
		// re-asserts occupancy.
		if count == 0 {
			s.occupyTableForCart(ctx, cart)
		}
	}

	util.CartItemsTotal.WithLabelValues(op).Inc()
	s.publishItemEvent(ctx, cart, scopedID, quantity, op)
	return nil
}

// UpdateItemQuantity replaces a line item's quantity. A quantity of zero or
// below removes the line item.
func (s *CartService) UpdateItemQuantity(ctx context.Context, m *LineItemMutation) error {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItemQuantity")
	defer span.End()

	if m.Quantity <= 0 {
		return s.RemoveItem(ctx, m)
	}

	scopedID, err := s.resolveScoped(ctx, m)
	if err != nil {
		return err
	}
	cart, err := s.activeCart(ctx, m.CartID)
	if err != nil {
		return err
	}

	existing, err := s.store.GetCartItem(ctx, m.CartID, scopedID)
	if err != nil {
		return fmt.Errorf("failed to look up cart item: %w", err)
	}

	if existing != nil {
		if err := s.store.UpdateCartItem(ctx, existing.ID, m.Quantity, lineSubtotal(m.Quantity, m.UnitPrice)); err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
	} else {
		item := &models.CartItem{
			CartID:              m.CartID,
			RestaurantProductID: scopedID,
			Quantity:            m.Quantity,
			UnitPrice:           m.UnitPrice,
			Subtotal:            lineSubtotal(m.Quantity, m.UnitPrice),
		}
		if err := s.store.InsertCartItem(ctx, item); err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	util.CartItemsTotal.WithLabelValues(models.ItemOpUpdated).Inc()
	s.publishItemEvent(ctx, cart, scopedID, m.Quantity, models.ItemOpUpdated)
	return nil
}

// RemoveItem deletes the line item for the (cart, product) pair. Removing an
// item that is already gone is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, m *LineItemMutation) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	scopedID, err := s.resolveScoped(ctx, m)
	if err != nil {
		return err
	}
	cart, err := s.activeCart(ctx, m.CartID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCartItem(ctx, m.CartID, scopedID); err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	util.CartItemsTotal.WithLabelValues(models.ItemOpRemoved).Inc()
	s.publishItemEvent(ctx, cart, scopedID, 0, models.ItemOpRemoved)
	return nil
}

// GetActiveCart returns the pending or in-preparation cart for a target
// together with its line items.
func (s *CartService) GetActiveCart(ctx context.Context, target models.OrderTarget) (*models.Cart, []models.CartItemView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetActiveCart")
	defer span.End()

	if !target.Valid() {
		return nil, nil, ErrInvalidTarget
	}

	cart, err := s.store.GetActiveCartByTarget(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch active cart: %w", err)
	}
	if cart == nil {
		return nil, nil, ErrNoActiveCart
	}

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch cart items: %w", err)
	}
	return cart, items, nil
}

// GetCompleteCart returns the cart id and line items for checkout
// reconciliation, scoped to the given restaurant.
func (s *CartService) GetCompleteCart(ctx context.Context, target models.OrderTarget, restaurantID int64) (int64, []models.CartItemView, error) {
	cart, items, err := s.GetActiveCart(ctx, target)
	if err != nil {
		return 0, nil, err
	}
	if cart.RestaurantID != restaurantID {
		return 0, nil, ErrNoActiveCart
	}
	return cart.ID, items, nil
}

// ClearIfEmpty deletes an abandoned cart, but only after the store confirms
// within a transaction that it holds zero line items. Only then is the table
// released; a cart that still has rows is left untouched.
func (s *CartService) ClearIfEmpty(ctx context.Context, cartID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ClearIfEmpty")
	defer span.End()

	cart, err := s.store.GetCartByID(ctx, cartID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch cart: %w", err)
	}
	if cart == nil {
		return false, ErrCartNotFound
	}

	deleted, err := s.store.DeleteEmptyCartTx(ctx, cartID, cart.OrderTypeID)
	if err != nil {
		return false, fmt.Errorf("failed to clear cart: %w", err)
	}
	if !deleted {
		return false, nil
	}

	released := false
	if cart.TargetKind == models.TargetKindTable {
		if err := s.store.UpdateTableStatus(ctx, cart.TargetID, models.TableStatusAvailable); err != nil {
			s.reportDrift(ctx, "table_release", cartID, cart.TargetID, cart.RestaurantID, err)
		} else {
			released = true
		}
	}

	util.CartsClearedTotal.Inc()
	s.logger.Info("Empty cart cleared",
		zap.Int64("cart_id", cartID),
		zap.Bool("table_released", released))

	event := &models.CartClearedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeCartCleared),
		CartID:        cartID,
		RestaurantID:  cart.RestaurantID,
		TableReleased: released,
	}
	if err := s.publisher.PublishCartCleared(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartCleared event", zap.Error(err))
	}

	return true, nil
}

// resolveScoped returns the restaurant-scoped product id for a mutation,
// resolving the global product id when no scoped id was given.
func (s *CartService) resolveScoped(ctx context.Context, m *LineItemMutation) (int64, error) {
	if m.RestaurantProductID != 0 {
		return m.RestaurantProductID, nil
	}
	scopedID, ok := s.resolver.ResolveProduct(ctx, m.RestaurantID, m.ProductID)
	if !ok {
		return 0, ErrProductNotInRestaurant
	}
	return scopedID, nil
}

// activeCart fetches a cart and verifies it can still be mutated
func (s *CartService) activeCart(ctx context.Context, cartID int64) (*models.Cart, error) {
	cart, err := s.store.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if !cart.IsActive() {
		return nil, ErrCartNotActive
	}
	return cart, nil
}

// occupyTableForCart marks the cart's table occupied when the cart is
// anchored to one. Best-effort.
func (s *CartService) occupyTableForCart(ctx context.Context, cart *models.Cart) {
	if cart.TargetKind != models.TargetKindTable {
		return
	}
	if err := s.store.UpdateTableStatus(ctx, cart.TargetID, models.TableStatusOccupied); err != nil {
		s.reportDrift(ctx, "table_occupy", cart.ID, cart.TargetID, cart.RestaurantID, err)
	}
}

func (s *CartService) publishItemEvent(ctx context.Context, cart *models.Cart, scopedID int64, quantity int, op string) {
	event := &models.CartItemUpdatedEvent{
		BaseEvent:           newBaseEvent(models.EventTypeCartItemUpdated),
		CartID:              cart.ID,
		RestaurantID:        cart.RestaurantID,
		RestaurantProductID: scopedID,
		Quantity:            quantity,
		Op:                  op,
	}
	if err := s.publisher.PublishCartItemUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartItemUpdated event", zap.Error(err))
	}
}

// reportDrift records a failed best-effort secondary write so operators can
// detect drift between cart/sale state and table state.
func (s *CartService) reportDrift(ctx context.Context, operation string, cartID, tableID, restaurantID int64, cause error) {
	s.logger.Error("Secondary write failed",
		zap.String("operation", operation),
		zap.Int64("cart_id", cartID),
		zap.Int64("table_id", tableID),
		zap.Error(cause))
	util.SecondaryWriteFailuresTotal.WithLabelValues(operation).Inc()

	event := &models.StateDriftEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStateDrift),
		Operation:    operation,
		CartID:       cartID,
		TableID:      tableID,
		RestaurantID: restaurantID,
		Reason:       cause.Error(),
	}
	if err := s.publisher.PublishStateDrift(ctx, event); err != nil {
		s.logger.Error("Failed to publish StateDrift event", zap.Error(err))
	}
}

// buildCartItems maps line item requests through the resolved catalog
// mapping. When any product is unmapped, no items are returned and the
// missing ids are reported, so the caller rejects the creation as a whole.
func buildCartItems(items []LineItemRequest, mapping map[int64]int64) ([]models.CartItem, []int64) {
	out := make([]models.CartItem, 0, len(items))
	var missing []int64
	for _, item := range items {
		scopedID, ok := mapping[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		out = append(out, models.CartItem{
			RestaurantProductID: scopedID,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			Subtotal:            lineSubtotal(item.Quantity, item.UnitPrice),
		})
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return out, nil
}

// lineSubtotal computes quantity × unit price rounded to cents
func lineSubtotal(quantity int, unitPrice float64) float64 {
	return math.Round(float64(quantity)*unitPrice*100) / 100
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
