package store

import (
	"context"
	"database/sql"
	"fmt"

	"pos-service/internal/models"
)

// CreateCartTx inserts the order type, the cart and all initial line items in
// a single transaction. Either every row lands or none does. The cart's
// OrderTypeID, ID and timestamps are filled in on success.
func (s *Store) CreateCartTx(ctx context.Context, target models.OrderTarget, cart *models.Cart, items []models.CartItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tableID, deliveryID *int64
	switch target.Kind {
	case models.TargetKindTable:
		tableID = &target.ID
	case models.TargetKindDelivery:
		deliveryID = &target.ID
	default:
		return fmt.Errorf("invalid order target kind: %q", target.Kind)
	}

	err = tx.GetContext(ctx, &cart.OrderTypeID,
		"INSERT INTO order_types (table_id, delivery_id) VALUES ($1, $2) RETURNING id",
		tableID, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to insert order type: %w", err)
	}

	// The partial unique index on (target_kind, target_id) makes concurrent
	// creates for the same target fail here with a unique violation.
	err = tx.GetContext(ctx, cart, `
		INSERT INTO carts (restaurant_id, order_type_id, customer_id, target_kind, target_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, restaurant_id, order_type_id, customer_id, target_kind, target_id, status, created_at, updated_at`,
		cart.RestaurantID, cart.OrderTypeID, cart.CustomerID, target.Kind, target.ID, models.CartStatusPending)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}

	for i := range items {
		items[i].CartID = cart.ID
		err = tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO cart_items (cart_id, restaurant_product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			items[i].CartID, items[i].RestaurantProductID, items[i].Quantity,
			items[i].UnitPrice, items[i].Subtotal)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	return tx.Commit()
}

// GetCartByID retrieves a cart by ID, or nil when absent
func (s *Store) GetCartByID(ctx context.Context, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetActiveCartByTarget retrieves the pending or in-preparation cart anchored
// to the given table or delivery, or nil when no such cart exists.
func (s *Store) GetActiveCartByTarget(ctx context.Context, target models.OrderTarget) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		SELECT * FROM carts
		WHERE target_kind = $1 AND target_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1`,
		target.Kind, target.ID, models.CartStatusPending, models.CartStatusInPreparation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartItems retrieves all line items for a cart, each joined with the
// global product id behind its restaurant-scoped product.
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItemView, error) {
	var items []models.CartItemView
	err := s.db.SelectContext(ctx, &items, `
		SELECT ci.*, rp.product_id FROM cart_items ci
		JOIN restaurant_products rp ON ci.restaurant_product_id = rp.id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	return items, err
}

// GetCartItem retrieves the line item for a (cart, restaurant product) pair,
// or nil when no such row exists.
func (s *Store) GetCartItem(ctx context.Context, cartID, restaurantProductID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND restaurant_product_id = $2",
		cartID, restaurantProductID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CountCartItems returns the number of line items in a cart
func (s *Store) CountCartItems(ctx context.Context, cartID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM cart_items WHERE cart_id = $1", cartID)
	return count, err
}

// InsertCartItem inserts a new line item
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	return s.db.GetContext(ctx, &item.ID, `
		INSERT INTO cart_items (cart_id, restaurant_product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.CartID, item.RestaurantProductID, item.Quantity, item.UnitPrice, item.Subtotal)
}

// UpdateCartItem replaces a line item's quantity and subtotal
func (s *Store) UpdateCartItem(ctx context.Context, itemID int64, quantity int, subtotal float64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, subtotal = $2 WHERE id = $3",
		quantity, subtotal, itemID)
	return err
}

// DeleteCartItem removes the line item for a (cart, restaurant product) pair.
// Deleting a row that does not exist is not an error.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, restaurantProductID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1 AND restaurant_product_id = $2",
		cartID, restaurantProductID)
	return err
}

// UpdateCartStatus updates a cart's status
func (s *Store) UpdateCartStatus(ctx context.Context, cartID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET status = $1, updated_at = NOW() WHERE id = $2",
		status, cartID)
	return err
}

// DeleteEmptyCartTx deletes the cart and its order type, but only after
// confirming inside the transaction that the cart has zero line items.
// Returns true when the cart was deleted, false when items were present.
func (s *Store) DeleteEmptyCartTx(ctx context.Context, cartID, orderTypeID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the cart row so a concurrent item insert can't slip in between
	// the count and the delete.
	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM carts WHERE id = $1 FOR UPDATE", cartID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock cart: %w", err)
	}

	var count int
	err = tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM cart_items WHERE cart_id = $1", cartID)
	if err != nil {
		return false, fmt.Errorf("failed to count cart items: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", cartID); err != nil {
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM order_types WHERE id = $1", orderTypeID); err != nil {
		return false, fmt.Errorf("failed to delete order type: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
