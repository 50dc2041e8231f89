package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindMutation(t *testing.T, body string, needsQuantity bool) (*service.LineItemMutation, bool, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/cart/update-quantity", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{}
	m, ok := h.bindItemMutation(c, needsQuantity)
	return m, ok, w
}

func TestBindItemMutationZeroQuantityNeedsNoPrice(t *testing.T) {
	m, ok, _ := bindMutation(t, `{"cartId":42,"productId":4,"restaurantId":1,"quantity":0}`, true)

	require.True(t, ok, "a removal via quantity 0 must not require a price")
	assert.Equal(t, 0, m.Quantity)
	assert.Equal(t, int64(4), m.ProductID)
	assert.Equal(t, int64(42), m.CartID)
}

func TestBindItemMutationPositiveQuantityRequiresPrice(t *testing.T) {
	_, ok, w := bindMutation(t, `{"cartId":42,"productId":4,"restaurantId":1,"quantity":2}`, true)

	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unitPrice")
}

func TestBindItemMutationRequiresProductReference(t *testing.T) {
	_, ok, w := bindMutation(t, `{"cartId":42,"quantity":1,"unitPrice":5}`, true)

	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindItemMutationRequiresRestaurantWithGlobalID(t *testing.T) {
	_, ok, w := bindMutation(t, `{"cartId":42,"productId":4,"quantity":1,"unitPrice":5}`, true)

	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "restaurantId")
}

func TestBindItemMutationAcceptsScopedID(t *testing.T) {
	m, ok, _ := bindMutation(t, `{"cartId":42,"restaurantScopedProductId":104}`, false)

	require.True(t, ok)
	assert.Equal(t, int64(104), m.RestaurantProductID)
	assert.Equal(t, 0, m.Quantity)
}
