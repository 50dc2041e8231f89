package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCreateCart(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cart/create", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true, "cartId": 42, "orderTypeId": 142,
		})
	}))
	defer srv.Close()

	api := NewHTTPCartAPI(srv.URL)
	cartID, orderTypeID, err := api.CreateCart(context.Background(),
		models.OrderTarget{Kind: models.TargetKindTable, ID: 5}, 1, nil,
		[]CartItemInput{{ProductID: 4, Quantity: 2, UnitPrice: 12.99, Subtotal: 25.98}})

	require.NoError(t, err)
	assert.Equal(t, int64(42), cartID)
	assert.Equal(t, int64(142), orderTypeID)

	orderType := got["orderType"].(map[string]interface{})
	assert.Equal(t, "mesa", orderType["kind"])
	assert.Equal(t, float64(5), orderType["id"])

	cartData := got["cartData"].(map[string]interface{})
	assert.Equal(t, float64(1), cartData["restaurantId"])
	items := cartData["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, float64(4), item["productId"])
	assert.Equal(t, float64(2), item["quantity"])
	assert.Equal(t, 12.99, item["unitPrice"])
	assert.Equal(t, 25.98, item["subtotal"])
}

func TestHTTPCreateCartErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false, "error": "products not available in restaurant: [8]",
		})
	}))
	defer srv.Close()

	api := NewHTTPCartAPI(srv.URL)
	_, _, err := api.CreateCart(context.Background(),
		models.OrderTarget{Kind: models.TargetKindTable, ID: 5}, 1, nil,
		[]CartItemInput{{ProductID: 8, Quantity: 1, UnitPrice: 5}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "products not available")
}

func TestHTTPActiveCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart/active", r.URL.Path)
		assert.Equal(t, "domicilio", r.URL.Query().Get("orderTypeKind"))
		assert.Equal(t, "9", r.URL.Query().Get("id"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"cart": map[string]interface{}{
				"id": 42,
				"items": []map[string]interface{}{
					{"productId": 4, "quantity": 2},
				},
			},
		})
	}))
	defer srv.Close()

	api := NewHTTPCartAPI(srv.URL)
	remote, err := api.ActiveCart(context.Background(),
		models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9})

	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.Equal(t, int64(42), remote.CartID)
	assert.Equal(t, []RemoteItem{{ProductID: 4, Quantity: 2}}, remote.Items)
}

func TestHTTPActiveCartNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "cart": nil})
	}))
	defer srv.Close()

	api := NewHTTPCartAPI(srv.URL)
	remote, err := api.ActiveCart(context.Background(),
		models.OrderTarget{Kind: models.TargetKindTable, ID: 5})

	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestHTTPUpdateItemQuantity(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/update-quantity", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer srv.Close()

	api := NewHTTPCartAPI(srv.URL)
	require.NoError(t, api.UpdateItemQuantity(context.Background(), 42, 4, 1, 3, 12.99))

	assert.Equal(t, float64(42), got["cartId"])
	assert.Equal(t, float64(4), got["productId"])
	assert.Equal(t, float64(3), got["quantity"])
}
