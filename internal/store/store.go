package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation. Used to detect racing cart creates on the same target.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetRestaurantProduct retrieves the restaurant-scoped row for a global
// product id, or nil when the product is not offered by the restaurant.
func (s *Store) GetRestaurantProduct(ctx context.Context, restaurantID, productID int64) (*models.RestaurantProduct, error) {
	var rp models.RestaurantProduct
	err := s.db.GetContext(ctx, &rp,
		"SELECT * FROM restaurant_products WHERE restaurant_id = $1 AND product_id = $2 AND available = true",
		restaurantID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

// GetRestaurantProducts retrieves the restaurant-scoped rows for a set of
// global product ids. Products the restaurant does not offer are simply
// absent from the result.
func (s *Store) GetRestaurantProducts(ctx context.Context, restaurantID int64, productIDs []int64) ([]models.RestaurantProduct, error) {
	if len(productIDs) == 0 {
		return []models.RestaurantProduct{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM restaurant_products WHERE restaurant_id = ? AND product_id IN (?) AND available = true",
		restaurantID, productIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rps []models.RestaurantProduct
	err = s.db.SelectContext(ctx, &rps, query, args...)
	return rps, err
}

// GetTableByID retrieves a table by ID
func (s *Store) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	var table models.Table
	err := s.db.GetContext(ctx, &table, "SELECT * FROM tables WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// UpdateTableStatus updates a table's occupancy status
func (s *Store) UpdateTableStatus(ctx context.Context, tableID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tables SET status = $1, updated_at = NOW() WHERE id = $2",
		status, tableID)
	return err
}

// ListTables retrieves all tables for a restaurant
func (s *Store) ListTables(ctx context.Context, restaurantID int64) ([]models.Table, error) {
	var tables []models.Table
	err := s.db.SelectContext(ctx, &tables,
		"SELECT * FROM tables WHERE restaurant_id = $1 ORDER BY number", restaurantID)
	return tables, err
}

// ListDeliveries retrieves deliveries with an active cart for a restaurant
func (s *Store) ListDeliveries(ctx context.Context, restaurantID int64) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := s.db.SelectContext(ctx, &deliveries, `
		SELECT d.* FROM deliveries d
		JOIN carts c ON c.target_kind = $1 AND c.target_id = d.id
		WHERE c.restaurant_id = $2 AND c.status IN ($3, $4)
		ORDER BY d.id`,
		models.TargetKindDelivery, restaurantID,
		models.CartStatusPending, models.CartStatusInPreparation)
	return deliveries, err
}
