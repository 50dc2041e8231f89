package models

import "time"

// Order target kinds as they appear on the wire. The values mirror the
// underlying schema naming (mesa = table, domicilio = delivery).
const (
	TargetKindTable    = "mesa"
	TargetKindDelivery = "domicilio"
)

// OrderTarget identifies what a cart is anchored to: a table or a delivery.
type OrderTarget struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// Valid reports whether the target references a known kind and a real id.
func (t OrderTarget) Valid() bool {
	return (t.Kind == TargetKindTable || t.Kind == TargetKindDelivery) && t.ID > 0
}

// Table represents a physical restaurant table
type Table struct {
	ID           int64     `db:"id" json:"id"`
	RestaurantID int64     `db:"restaurant_id" json:"restaurant_id"`
	Number       int       `db:"number" json:"number"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Status       string    `db:"status" json:"status"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Delivery represents a delivery destination
type Delivery struct {
	ID         int64  `db:"id" json:"id"`
	CustomerID int64  `db:"customer_id" json:"customer_id"`
	Address    string `db:"address" json:"address"`
	City       string `db:"city" json:"city"`
	Reference  string `db:"reference" json:"reference,omitempty"`
}

// Cart represents an in-progress order. TargetKind and TargetID duplicate the
// order type's target so the database can enforce at most one active cart per
// table or delivery.
type Cart struct {
	ID           int64     `db:"id" json:"id"`
	RestaurantID int64     `db:"restaurant_id" json:"restaurant_id"`
	OrderTypeID  int64     `db:"order_type_id" json:"order_type_id"`
	CustomerID   *int64    `db:"customer_id" json:"customer_id,omitempty"`
	TargetKind   string    `db:"target_kind" json:"target_kind"`
	TargetID     int64     `db:"target_id" json:"target_id"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Target returns the cart's order target.
func (c *Cart) Target() OrderTarget {
	return OrderTarget{Kind: c.TargetKind, ID: c.TargetID}
}

// CartItem is one line item within a cart. At most one row exists per
// (cart, restaurant product) pair; quantity changes update in place.
type CartItem struct {
	ID                  int64   `db:"id" json:"id"`
	CartID              int64   `db:"cart_id" json:"cart_id"`
	RestaurantProductID int64   `db:"restaurant_product_id" json:"restaurant_product_id"`
	Quantity            int     `db:"quantity" json:"quantity"`
	UnitPrice           float64 `db:"unit_price" json:"unit_price"`
	Subtotal            float64 `db:"subtotal" json:"subtotal"`
}

// CartItemView is a cart item joined with the global product id behind its
// restaurant-scoped product, as served to cart sync clients.
type CartItemView struct {
	CartItem
	ProductID int64 `db:"product_id" json:"product_id"`
}

// RestaurantProduct links a global product to a restaurant
type RestaurantProduct struct {
	ID           int64 `db:"id" json:"id"`
	ProductID    int64 `db:"product_id" json:"product_id"`
	RestaurantID int64 `db:"restaurant_id" json:"restaurant_id"`
	Available    bool  `db:"available" json:"available"`
}

// Product represents a product in the global catalog
type Product struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Price float64 `db:"price" json:"price"`
}

// Sale is the immutable financial record created when a cart is finalized
type Sale struct {
	ID            int64     `db:"id" json:"id"`
	CartID        int64     `db:"cart_id" json:"cart_id"`
	RestaurantID  int64     `db:"restaurant_id" json:"restaurant_id"`
	CustomerID    *int64    `db:"customer_id" json:"customer_id,omitempty"`
	Total         float64   `db:"total" json:"total"`
	CashTendered  float64   `db:"cash_tendered" json:"cash_tendered"`
	ChangeGiven   float64   `db:"change_given" json:"change_given"`
	OrderType     string    `db:"order_type" json:"order_type"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Table statuses
const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

// Cart statuses
const (
	CartStatusPending       = "pending"
	CartStatusInPreparation = "in_preparation"
	CartStatusCompleted     = "completed"
)

// IsActive reports whether the cart can still accept line item changes.
func (c *Cart) IsActive() bool {
	return c.Status == CartStatusPending || c.Status == CartStatusInPreparation
}

// Sale order types
const (
	SaleOrderTypeTable    = "TABLE"
	SaleOrderTypeDelivery = "DELIVERY"
)
