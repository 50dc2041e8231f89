package models

import "time"

// Event types
const (
	EventTypeCartCreated     = "CART_CREATED"
	EventTypeCartItemUpdated = "CART_ITEM_UPDATED"
	EventTypeCartCleared     = "CART_CLEARED"
	EventTypeSaleCompleted   = "SALE_COMPLETED"
	EventTypeStateDrift      = "STATE_DRIFT"
)

// Line item operations carried by CartItemUpdatedEvent
const (
	ItemOpAdded   = "added"
	ItemOpUpdated = "updated"
	ItemOpRemoved = "removed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartCreatedEvent published when a new cart is reconciled into the store
type CartCreatedEvent struct {
	BaseEvent
	CartID       int64          `json:"cart_id"`
	OrderTypeID  int64          `json:"order_type_id"`
	RestaurantID int64          `json:"restaurant_id"`
	Target       OrderTarget    `json:"target"`
	Items        []CartItemData `json:"items"`
}

// CartItemUpdatedEvent published when a line item is added, changed or removed
type CartItemUpdatedEvent struct {
	BaseEvent
	CartID              int64  `json:"cart_id"`
	RestaurantID        int64  `json:"restaurant_id"`
	RestaurantProductID int64  `json:"restaurant_product_id"`
	Quantity            int    `json:"quantity"`
	Op                  string `json:"op"`
}

// CartClearedEvent published when an empty cart is confirmed abandoned
type CartClearedEvent struct {
	BaseEvent
	CartID        int64 `json:"cart_id"`
	RestaurantID  int64 `json:"restaurant_id"`
	TableReleased bool  `json:"table_released"`
}

// SaleCompletedEvent published when a cart is finalized into a sale
type SaleCompletedEvent struct {
	BaseEvent
	SaleID       int64   `json:"sale_id"`
	CartID       int64   `json:"cart_id"`
	RestaurantID int64   `json:"restaurant_id"`
	Total        float64 `json:"total"`
	OrderType    string  `json:"order_type"`
}

// StateDriftEvent published when a best-effort secondary write fails, so an
// operator can detect drift between cart/sale state and table state.
type StateDriftEvent struct {
	BaseEvent
	Operation    string `json:"operation"`
	CartID       int64  `json:"cart_id,omitempty"`
	SaleID       int64  `json:"sale_id,omitempty"`
	TableID      int64  `json:"table_id,omitempty"`
	RestaurantID int64  `json:"restaurant_id"`
	Reason       string `json:"reason"`
}

// CartItemData represents line item data in events
type CartItemData struct {
	RestaurantProductID int64   `json:"restaurant_product_id"`
	Quantity            int     `json:"quantity"`
	UnitPrice           float64 `json:"unit_price"`
}
