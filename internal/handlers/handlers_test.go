package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetCart(ctx context.Context, userID string) *services.CartResponse {
	return m.Called(ctx, userID).Get(0).(*services.CartResponse)
}

func (m *MockCartService) AddItem(ctx context.Context, userID string, req services.AddCartItemRequest) (*services.CartResponse, error) {
	args := m.Called(ctx, userID, req)
	resp, _ := args.Get(0).(*services.CartResponse)
	return resp, args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, dishID string, quantity int) (*services.CartResponse, error) {
	args := m.Called(ctx, userID, dishID, quantity)
	resp, _ := args.Get(0).(*services.CartResponse)
	return resp, args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, dishID string) (*services.CartResponse, error) {
	args := m.Called(ctx, userID, dishID)
	resp, _ := args.Get(0).(*services.CartResponse)
	return resp, args.Error(1)
}

func (m *MockCartService) ClearCart(ctx context.Context, userID string) (*services.CartResponse, error) {
	args := m.Called(ctx, userID)
	resp, _ := args.Get(0).(*services.CartResponse)
	return resp, args.Error(1)
}

func (m *MockCartService) BillSummary(ctx context.Context, userID string) models.BillSummary {
	return m.Called(ctx, userID).Get(0).(models.BillSummary)
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) view(args mock.Arguments) (*services.CheckoutView, error) {
	v, _ := args.Get(0).(*services.CheckoutView)
	return v, args.Error(1)
}

func (m *MockCheckoutService) State(userID string) *services.CheckoutView {
	return m.Called(userID).Get(0).(*services.CheckoutView)
}

func (m *MockCheckoutService) Start(ctx context.Context, userID string, req services.StartCheckoutRequest) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID, req))
}

func (m *MockCheckoutService) ConfirmCashOnDelivery(ctx context.Context, userID string, confirmed bool) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID, confirmed))
}

func (m *MockCheckoutService) ConfirmUPIPayment(ctx context.Context, userID string) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID))
}

func (m *MockCheckoutService) ResolveGatewayPayment(ctx context.Context, userID string, outcome models.PaymentOutcome) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID, outcome))
}

func (m *MockCheckoutService) RetryGatewayPayment(ctx context.Context, userID string) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID))
}

func (m *MockCheckoutService) AbandonPendingOrder(ctx context.Context, userID, reason string) (*services.CheckoutView, error) {
	return m.view(m.Called(ctx, userID, reason))
}

func (m *MockCheckoutService) Reset(userID string) (*services.CheckoutView, error) {
	return m.view(m.Called(userID))
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	args := m.Called(ctx, userID, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockOrderService) GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, userID, orderID, reason string) (string, error) {
	args := m.Called(ctx, userID, orderID, reason)
	return args.String(0), args.Error(1)
}

func (m *MockOrderService) GetRestaurantOrders(ctx context.Context, actor services.Actor, restaurantID string, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, actor, restaurantID, limit, offset)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, actor services.Actor, orderID string, next models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, actor, orderID, next)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockOrderService) HandleGatewayWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

// asUser stands in for the auth middleware.
func asUser(userID, role, restaurantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Set("restaurant_id", restaurantID)
		c.Next()
	}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCartHandler_Unauthorized(t *testing.T) {
	h := NewCartHandler(new(MockCartService))
	r := newRouter()
	r.GET("/cart", h.GetCart)

	w := doJSON(r, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartHandler_GetCart(t *testing.T) {
	svc := new(MockCartService)
	svc.On("GetCart", mock.Anything, "u1").Return(&services.CartResponse{Items: []models.LineItem{}, Total: 0})

	h := NewCartHandler(svc)
	r := newRouter(asUser("u1", "customer", ""))
	r.GET("/cart", h.GetCart)

	w := doJSON(r, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"total_item_count":0,"bill":{"sub_total":0,"tax_amount":0,"delivery_fee":0,"total_amount":0}}`, w.Body.String())
}

func TestCartHandler_AddItemErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", services.ErrDishNotFound, http.StatusNotFound},
		{"unavailable", services.ErrDishUnavailable, http.StatusBadRequest},
		{"invalid", fmt.Errorf("%w: name required", services.ErrInvalidCartRequest), http.StatusBadRequest},
		{"not persisted", fmt.Errorf("%w: redis down", services.ErrCartPersist), http.StatusOK},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCartService)
			svc.On("AddItem", mock.Anything, "u1", services.AddCartItemRequest{DishID: "d1"}).
				Return(&services.CartResponse{Items: []models.LineItem{}}, tt.err)

			h := NewCartHandler(svc)
			r := newRouter(asUser("u1", "customer", ""))
			r.POST("/cart/items", h.AddItem)

			w := doJSON(r, http.MethodPost, "/cart/items", map[string]string{"dish_id": "d1"})
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCartHandler_UpdateQuantity(t *testing.T) {
	svc := new(MockCartService)
	svc.On("UpdateQuantity", mock.Anything, "u1", "d1", 0).Return(&services.CartResponse{Items: []models.LineItem{}}, nil).Once()

	h := NewCartHandler(svc)
	r := newRouter(asUser("u1", "customer", ""))
	r.PUT("/cart/items/:dish_id", h.UpdateQuantity)

	w := doJSON(r, http.MethodPut, "/cart/items/d1", map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPut, "/cart/items/d1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_ErrorMapping(t *testing.T) {
	failed := &services.CheckoutView{State: models.CheckoutFailed, FailureReason: models.FailureNetworkError}

	tests := []struct {
		name   string
		view   *services.CheckoutView
		err    error
		code   int
		reason string
	}{
		{"ok", &services.CheckoutView{State: models.CheckoutAwaitingCODConfirmation}, nil, http.StatusOK, ""},
		{"validation", nil, &services.CheckoutError{Kind: services.ErrValidation, Message: "your cart is empty"}, http.StatusBadRequest, ""},
		{"in progress", nil, &services.CheckoutError{Kind: services.ErrCheckoutInProgress}, http.StatusConflict, ""},
		{"declined", &services.CheckoutView{State: models.CheckoutIdle}, &services.CheckoutError{Kind: services.ErrPaymentDeclined, Reason: models.FailurePaymentFailed}, http.StatusPaymentRequired, "payment_failed"},
		{"network", failed, &services.CheckoutError{Kind: services.ErrNetwork, Reason: models.FailureNetworkError}, http.StatusBadGateway, "network_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			svc.On("Start", mock.Anything, "u1", services.StartCheckoutRequest{PaymentMethod: "cod"}).Return(tt.view, tt.err)

			h := NewCheckoutHandler(svc)
			r := newRouter(asUser("u1", "customer", ""))
			r.POST("/checkout", h.Start)

			w := doJSON(r, http.MethodPost, "/checkout", map[string]string{"payment_method": "cod"})
			assert.Equal(t, tt.code, w.Code)

			if tt.reason != "" {
				var resp CheckoutErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.reason, resp.Reason)
				require.NotNil(t, resp.State)
				assert.Equal(t, tt.view.State, resp.State.State)
			}
		})
	}
}

func TestCheckoutHandler_GatewayOutcome(t *testing.T) {
	svc := new(MockCheckoutService)
	cancelled := &services.CheckoutView{State: models.CheckoutFailed, FailureReason: models.FailureUserCancelled}
	svc.On("ResolveGatewayPayment", mock.Anything, "u1", models.PaymentCancelled()).
		Return(cancelled, &services.CheckoutError{Kind: services.ErrUserCancelled, Reason: models.FailureUserCancelled}).Once()

	h := NewCheckoutHandler(svc)
	r := newRouter(asUser("u1", "customer", ""))
	r.POST("/checkout/gateway/outcome", h.GatewayOutcome)

	w := doJSON(r, http.MethodPost, "/checkout/gateway/outcome", map[string]string{"outcome": "cancelled"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failure_reason":"user_cancelled"`)

	// success without proof never reaches the service
	w = doJSON(r, http.MethodPost, "/checkout/gateway/outcome", map[string]string{"outcome": "success"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_CODConfirmAndAbandon(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("ConfirmCashOnDelivery", mock.Anything, "u1", false).Return(&services.CheckoutView{State: models.CheckoutIdle}, nil).Once()
	svc.On("AbandonPendingOrder", mock.Anything, "u1", "").Return(&services.CheckoutView{State: models.CheckoutIdle, Message: "Order cancelled successfully"}, nil).Once()

	h := NewCheckoutHandler(svc)
	r := newRouter(asUser("u1", "customer", ""))
	r.POST("/checkout/cod/confirm", h.ConfirmCashOnDelivery)
	r.POST("/checkout/abandon", h.Abandon)

	w := doJSON(r, http.MethodPost, "/checkout/cod/confirm", map[string]bool{"confirmed": false})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/checkout/abandon", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Order cancelled successfully")
	svc.AssertExpectations(t)
}

func TestOrderHandler_Routes(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("GetOrder", mock.Anything, "u1", "missing").Return(nil, services.ErrOrderNotFound)
	svc.On("GetUserOrders", mock.Anything, "u1", 20, 0).Return(nil, nil)
	svc.On("CancelOrder", mock.Anything, "u1", "o1", "").Return("", services.ErrOrderNotCancellable)

	h := NewOrderHandler(svc)
	r := newRouter(asUser("u1", "customer", ""))
	r.GET("/orders", h.GetUserOrders)
	r.GET("/orders/:id", h.GetOrderByID)
	r.POST("/orders/:id/cancel", h.CancelOrder)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/orders/missing", nil).Code)

	w := doJSON(r, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/orders/o1/cancel", nil).Code)
}

func TestOrderHandler_UpdateStatusUsesActor(t *testing.T) {
	svc := new(MockOrderService)
	actor := services.Actor{UserID: "s1", Role: "restaurant_staff", RestaurantID: "R1"}
	svc.On("UpdateOrderStatus", mock.Anything, actor, "o1", models.OrderStatusPreparing).
		Return(&models.Order{OrderStatus: models.OrderStatusPreparing}, nil).Once()
	svc.On("UpdateOrderStatus", mock.Anything, actor, "o2", models.OrderStatusDelivered).
		Return(nil, services.ErrInvalidStatusTransition).Once()

	h := NewOrderHandler(svc)
	r := newRouter(asUser("s1", "restaurant_staff", "R1"))
	r.PUT("/staff/orders/:id/status", h.UpdateOrderStatus)

	w := doJSON(r, http.MethodPut, "/staff/orders/o1/status", map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPut, "/staff/orders/o2/status", map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, w.Code)
	svc.AssertExpectations(t)
}

func TestRazorpayHandler_Webhook(t *testing.T) {
	svc := new(MockOrderService)
	body := `{"event":"payment.captured"}`
	svc.On("HandleGatewayWebhook", mock.Anything, []byte(body), "good").Return(nil).Once()
	svc.On("HandleGatewayWebhook", mock.Anything, []byte(body), "bad").Return(services.ErrInvalidWebhookSignature).Once()

	h := NewRazorpayHandler(svc)
	r := newRouter()
	h.RegisterRoutes(&r.RouterGroup)

	send := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewBufferString(body))
		if sig != "" {
			req.Header.Set("X-Razorpay-Signature", sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(""))
	assert.Equal(t, http.StatusOK, send("good"))
	assert.Equal(t, http.StatusUnauthorized, send("bad"))
	svc.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	r := newRouter()
	NewHealthHandler("swadhan-eats", map[string]HealthCheck{"postgres": ok}).RegisterRoutes(r)
	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	r = newRouter()
	NewHealthHandler("swadhan-eats", map[string]HealthCheck{"postgres": ok, "redis": down}).RegisterRoutes(r)
	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

type MockMenuReader struct {
	mock.Mock
}

func (m *MockMenuReader) GetByRestaurantID(ctx context.Context, restaurantID string, limit, offset int) ([]models.Dish, error) {
	args := m.Called(ctx, restaurantID, limit, offset)
	dishes, _ := args.Get(0).([]models.Dish)
	return dishes, args.Error(1)
}

func TestMenuHandler_GetDishes(t *testing.T) {
	menu := new(MockMenuReader)
	menu.On("GetByRestaurantID", mock.Anything, "R1", 20, 0).Return([]models.Dish{{RestaurantID: "R1", Name: "Margherita", Price: 299, IsAvailable: true}}, nil)
	menu.On("GetByRestaurantID", mock.Anything, "R2", 5, 10).Return(nil, nil)
	menu.On("GetByRestaurantID", mock.Anything, "R3", 20, 0).Return(nil, errors.New("mongo down"))

	r := newRouter()
	NewMenuHandler(menu).RegisterRoutes(r.Group(""))

	w := doJSON(r, http.MethodGet, "/restaurants/R1/dishes", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var dishes []models.Dish
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dishes))
	require.Len(t, dishes, 1)
	assert.Equal(t, "Margherita", dishes[0].Name)

	w = doJSON(r, http.MethodGet, "/restaurants/R2/dishes?limit=5&offset=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = doJSON(r, http.MethodGet, "/restaurants/R3/dishes", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	menu.AssertExpectations(t)
}
