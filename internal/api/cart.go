package api

import (
	"errors"
	"net/http"
	"strconv"

	"pos-service/internal/models"
	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Request bodies are typed and validated at the boundary; nothing
// unstructured reaches the cart service.

type orderTypeRef struct {
	Kind string `json:"kind" binding:"required,oneof=mesa domicilio"`
	ID   int64  `json:"id" binding:"required,gt=0"`
}

type cartItemPayload struct {
	ProductID int64   `json:"productId" binding:"required,gt=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" binding:"required,gt=0"`
	Subtotal  float64 `json:"subtotal"`
}

type cartDataPayload struct {
	RestaurantID int64             `json:"restaurantId" binding:"required,gt=0"`
	CustomerID   *int64            `json:"customerId"`
	Items        []cartItemPayload `json:"items" binding:"required,min=1,dive"`
}

type createCartRequest struct {
	OrderType orderTypeRef    `json:"orderType" binding:"required"`
	CartData  cartDataPayload `json:"cartData" binding:"required"`
}

type itemMutationRequest struct {
	CartID                    int64   `json:"cartId" binding:"required,gt=0"`
	ProductID                 int64   `json:"productId"`
	RestaurantScopedProductID int64   `json:"restaurantScopedProductId"`
	RestaurantID              int64   `json:"restaurantId"`
	Quantity                  *int    `json:"quantity"`
	UnitPrice                 float64 `json:"unitPrice"`
}

type clearIfEmptyRequest struct {
	CartID int64 `json:"cartId" binding:"required,gt=0"`
}

type createSaleRequest struct {
	CartID        int64   `json:"cartId" binding:"required,gt=0"`
	RestaurantID  int64   `json:"restaurantId" binding:"required,gt=0"`
	CustomerID    *int64  `json:"customerId"`
	Total         float64 `json:"total" binding:"required,gt=0"`
	CashTendered  float64 `json:"cashTendered"`
	Change        float64 `json:"change"`
	OrderType     string  `json:"orderType" binding:"required,oneof=TABLE DELIVERY"`
	PaymentMethod string  `json:"paymentMethod" binding:"required"`
}

type cartItemResponse struct {
	ProductID           int64   `json:"productId"`
	RestaurantProductID int64   `json:"restaurantScopedProductId"`
	Quantity            int     `json:"quantity"`
	UnitPrice           float64 `json:"unitPrice"`
	Subtotal            float64 `json:"subtotal"`
}

type activeCartResponse struct {
	ID           int64              `json:"id"`
	RestaurantID int64              `json:"restaurantId"`
	OrderTypeID  int64              `json:"orderTypeId"`
	Status       string             `json:"status"`
	Items        []cartItemResponse `json:"items"`
}

// createCart handles cart creation
func (h *Handler) createCart(c *gin.Context) {
	var req createCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	items := make([]service.LineItemRequest, len(req.CartData.Items))
	for i, item := range req.CartData.Items {
		items[i] = service.LineItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}

	resp, err := h.carts.CreateCart(c.Request.Context(), &service.CreateCartRequest{
		Target:       models.OrderTarget{Kind: req.OrderType.Kind, ID: req.OrderType.ID},
		RestaurantID: req.CartData.RestaurantID,
		CustomerID:   req.CartData.CustomerID,
		Items:        items,
	})
	if err != nil {
		h.cartError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"cartId":      resp.CartID,
		"orderTypeId": resp.OrderTypeID,
	})
}

// addItem handles adding quantity to a line item
func (h *Handler) addItem(c *gin.Context) {
	m, ok := h.bindItemMutation(c, true)
	if !ok {
		return
	}

	if err := h.carts.AddItem(c.Request.Context(), m); err != nil {
		h.cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// updateQuantity handles replacing a line item's quantity; zero removes it
func (h *Handler) updateQuantity(c *gin.Context) {
	m, ok := h.bindItemMutation(c, true)
	if !ok {
		return
	}

	if err := h.carts.UpdateItemQuantity(c.Request.Context(), m); err != nil {
		h.cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// removeItem handles deleting a line item
func (h *Handler) removeItem(c *gin.Context) {
	m, ok := h.bindItemMutation(c, false)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), m); err != nil {
		h.cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// clearIfEmpty deletes a cart confirmed to hold zero line items
func (h *Handler) clearIfEmpty(c *gin.Context) {
	var req clearIfEmptyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	cleared, err := h.carts.ClearIfEmpty(c.Request.Context(), req.CartID)
	if err != nil {
		h.cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}

// activeCart returns the active cart for a target, or null when none exists
func (h *Handler) activeCart(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}

	cart, items, err := h.carts.GetActiveCart(c.Request.Context(), target)
	if errors.Is(err, service.ErrNoActiveCart) {
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": nil})
		return
	}
	if err != nil {
		h.cartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cart": activeCartResponse{
		ID:           cart.ID,
		RestaurantID: cart.RestaurantID,
		OrderTypeID:  cart.OrderTypeID,
		Status:       cart.Status,
		Items:        toItemResponses(items),
	}})
}

// completeCart returns the cart id and items for checkout reconciliation
func (h *Handler) completeCart(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	restaurantID, err := strconv.ParseInt(c.Query("restaurantId"), 10, 64)
	if err != nil || restaurantID <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	cartID, items, err := h.carts.GetCompleteCart(c.Request.Context(), target, restaurantID)
	if err != nil {
		h.cartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cartId":  cartID,
		"items":   toItemResponses(items),
	})
}

// createSale handles checkout finalization
func (h *Handler) createSale(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sale, err := h.sales.FinalizeSale(c.Request.Context(), &service.FinalizeSaleRequest{
		CartID:        req.CartID,
		RestaurantID:  req.RestaurantID,
		CustomerID:    req.CustomerID,
		Total:         req.Total,
		CashTendered:  req.CashTendered,
		Change:        req.Change,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.cartError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "sale": sale})
}

// bindItemMutation parses and validates a line item mutation body. One of
// productId and restaurantScopedProductId must identify the product;
// restaurantId is required alongside productId to resolve it.
func (h *Handler) bindItemMutation(c *gin.Context, needsQuantity bool) (*service.LineItemMutation, bool) {
	var req itemMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}

	if req.RestaurantScopedProductID <= 0 {
		if req.ProductID <= 0 {
			respondError(c, http.StatusBadRequest, "Either productId or restaurantScopedProductId is required")
			return nil, false
		}
		if req.RestaurantID <= 0 {
			respondError(c, http.StatusBadRequest, "restaurantId is required to resolve productId")
			return nil, false
		}
	}

	quantity := 0
	if needsQuantity {
		if req.Quantity == nil {
			respondError(c, http.StatusBadRequest, "quantity is required")
			return nil, false
		}
		quantity = *req.Quantity
		// A zero quantity removes the item; no price is needed for that.
		if quantity > 0 && req.UnitPrice <= 0 {
			respondError(c, http.StatusBadRequest, "unitPrice is required")
			return nil, false
		}
	}

	return &service.LineItemMutation{
		CartID:              req.CartID,
		RestaurantProductID: req.RestaurantScopedProductID,
		ProductID:           req.ProductID,
		RestaurantID:        req.RestaurantID,
		Quantity:            quantity,
		UnitPrice:           req.UnitPrice,
	}, true
}

// bindTarget parses the order target query parameters
func (h *Handler) bindTarget(c *gin.Context) (models.OrderTarget, bool) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid target ID")
		return models.OrderTarget{}, false
	}

	target := models.OrderTarget{Kind: c.Query("orderTypeKind"), ID: id}
	if !target.Valid() {
		respondError(c, http.StatusBadRequest, "Invalid order target")
		return models.OrderTarget{}, false
	}
	return target, true
}

// cartError maps service errors to status codes. Store failures are logged
// server-side and surfaced as a generic 500.
func (h *Handler) cartError(c *gin.Context, err error) {
	var unmapped *service.UnmappedProductsError
	switch {
	case errors.As(err, &unmapped):
		respondError(c, http.StatusBadRequest, unmapped.Error())
	case errors.Is(err, service.ErrProductNotInRestaurant):
		respondError(c, http.StatusNotFound, "Product not found in restaurant")
	case errors.Is(err, service.ErrCartNotFound):
		respondError(c, http.StatusNotFound, "Cart not found")
	case errors.Is(err, service.ErrNoActiveCart):
		respondError(c, http.StatusNotFound, "No active cart for target")
	case errors.Is(err, service.ErrCartNotActive):
		respondError(c, http.StatusBadRequest, "Cart is not active")
	case errors.Is(err, service.ErrInvalidTarget):
		respondError(c, http.StatusBadRequest, "Invalid order target")
	default:
		h.logger.Error("Request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func toItemResponses(items []models.CartItemView) []cartItemResponse {
	out := make([]cartItemResponse, len(items))
	for i, item := range items {
		out[i] = cartItemResponse{
			ProductID:           item.ProductID,
			RestaurantProductID: item.RestaurantProductID,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			Subtotal:            item.Subtotal,
		}
	}
	return out
}
