package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pos-service/internal/models"
)

// HTTPCartAPI is the CartAPI implementation speaking the POS service's JSON
// API.
type HTTPCartAPI struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCartAPI creates an HTTP-backed CartAPI against baseURL
func NewHTTPCartAPI(baseURL string) *HTTPCartAPI {
	return &HTTPCartAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiEnvelope struct {
	Success     bool               `json:"success"`
	Error       string             `json:"error"`
	CartID      int64              `json:"cartId"`
	OrderTypeID int64              `json:"orderTypeId"`
	Cart        *remoteCartPayload `json:"cart"`
}

type remoteCartPayload struct {
	ID    int64               `json:"id"`
	Items []remoteItemPayload `json:"items"`
}

type remoteItemPayload struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateCart creates a cart with the entire local cart as initial items
func (a *HTTPCartAPI) CreateCart(ctx context.Context, target models.OrderTarget, restaurantID int64, customerID *int64, items []CartItemInput) (int64, int64, error) {
	payloadItems := make([]map[string]interface{}, len(items))
	for i, item := range items {
		payloadItems[i] = map[string]interface{}{
			"productId": item.ProductID,
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice,
			"subtotal":  item.Subtotal,
		}
	}

	body := map[string]interface{}{
		"orderType": map[string]interface{}{"kind": target.Kind, "id": target.ID},
		"cartData": map[string]interface{}{
			"restaurantId": restaurantID,
			"customerId":   customerID,
			"items":        payloadItems,
		},
	}

	env, err := a.post(ctx, "/cart/create", body)
	if err != nil {
		return 0, 0, err
	}
	return env.CartID, env.OrderTypeID, nil
}

// UpdateItemQuantity sets a line item's absolute quantity
func (a *HTTPCartAPI) UpdateItemQuantity(ctx context.Context, cartID, productID, restaurantID int64, quantity int, unitPrice float64) error {
	_, err := a.post(ctx, "/cart/update-quantity", map[string]interface{}{
		"cartId":       cartID,
		"productId":    productID,
		"restaurantId": restaurantID,
		"quantity":     quantity,
		"unitPrice":    unitPrice,
	})
	return err
}

// RemoveItem deletes a line item
func (a *HTTPCartAPI) RemoveItem(ctx context.Context, cartID, productID, restaurantID int64) error {
	_, err := a.post(ctx, "/cart/remove-item", map[string]interface{}{
		"cartId":       cartID,
		"productId":    productID,
		"restaurantId": restaurantID,
	})
	return err
}

// ActiveCart fetches the active cart for a target, or nil when none exists
func (a *HTTPCartAPI) ActiveCart(ctx context.Context, target models.OrderTarget) (*RemoteCart, error) {
	query := url.Values{}
	query.Set("orderTypeKind", target.Kind)
	query.Set("id", fmt.Sprintf("%d", target.ID))

	env, err := a.do(ctx, http.MethodGet, "/cart/active?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if env.Cart == nil {
		return nil, nil
	}

	items := make([]RemoteItem, len(env.Cart.Items))
	for i, item := range env.Cart.Items {
		items[i] = RemoteItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return &RemoteCart{CartID: env.Cart.ID, Items: items}, nil
}

func (a *HTTPCartAPI) post(ctx context.Context, path string, body interface{}) (*apiEnvelope, error) {
	return a.do(ctx, http.MethodPost, path, body)
}

func (a *HTTPCartAPI) do(ctx context.Context, method, path string, body interface{}) (*apiEnvelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		if env.Error == "" {
			env.Error = resp.Status
		}
		return nil, fmt.Errorf("%s %s: %s", method, path, env.Error)
	}
	return &env, nil
}
