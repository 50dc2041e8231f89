package store

import (
	"context"
	"database/sql"

	"pos-service/internal/models"
)

// CreateSale inserts an immutable sale record. The timestamp is assigned by
// the database; the sale's ID and CreatedAt are filled in on success.
func (s *Store) CreateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (cart_id, restaurant_id, customer_id, total, cash_tendered, change_given, order_type, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, sale, query,
		sale.CartID, sale.RestaurantID, sale.CustomerID, sale.Total,
		sale.CashTendered, sale.ChangeGiven, sale.OrderType, sale.PaymentMethod)
}

// GetSaleByCartID retrieves the sale recorded for a cart, or nil when the
// cart was never finalized.
func (s *Store) GetSaleByCartID(ctx context.Context, cartID int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale,
		"SELECT * FROM sales WHERE cart_id = $1", cartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
