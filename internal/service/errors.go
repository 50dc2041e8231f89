package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCartNotFound is returned when a referenced cart does not exist.
	ErrCartNotFound = errors.New("cart not found")

	// ErrCartNotActive is returned when line items are mutated on a
	// completed cart.
	ErrCartNotActive = errors.New("cart is not active")

	// ErrNoActiveCart is returned when no pending or in-preparation cart
	// exists for an order target.
	ErrNoActiveCart = errors.New("no active cart for target")

	// ErrProductNotInRestaurant is returned when a product cannot be
	// resolved for the cart's restaurant.
	ErrProductNotInRestaurant = errors.New("product not available in restaurant")

	// ErrInvalidTarget is returned for order targets that are neither a
	// table nor a delivery reference.
	ErrInvalidTarget = errors.New("invalid order target")
)

// UnmappedProductsError rejects a cart creation whose line items reference
// products the restaurant does not offer. The whole creation fails; the
// failing product ids are reported to the caller.
type UnmappedProductsError struct {
	ProductIDs []int64
}

func (e *UnmappedProductsError) Error() string {
	return fmt.Sprintf("products not available in restaurant: %v", e.ProductIDs)
}
