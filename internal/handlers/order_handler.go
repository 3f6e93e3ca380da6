package handlers

import (
	"context"
	"net/http"

	"swadhan-eats/internal/middleware"
	"swadhan-eats/internal/models"
	"swadhan-eats/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderServiceInterface defines the order operations exposed over HTTP
type OrderServiceInterface interface {
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error)
	CancelOrder(ctx context.Context, userID, orderID, reason string) (string, error)
	GetRestaurantOrders(ctx context.Context, actor services.Actor, restaurantID string, limit, offset int) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, actor services.Actor, orderID string, next models.OrderStatus) (*models.Order, error)
}

type OrderHandler struct {
	orderService OrderServiceInterface
}

func NewOrderHandler(orderService OrderServiceInterface) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:       middleware.GetUserID(c),
		Role:         middleware.GetUserRole(c),
		RestaurantID: middleware.GetRestaurantID(c),
	}
}

// @Summary List my orders
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Order
// @Router /api/v1/orders [get]
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	limit, offset := pagination(c)
	orders, err := h.orderService.GetUserOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondOrderError(c, "Failed to get orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// @Summary Get one of my orders
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondOrderError(c, "Failed to get order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// @Summary Cancel one of my orders
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.CancelOrderRequest false "Reason"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	message, err := h.orderService.CancelOrder(c.Request.Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		respondOrderError(c, "Failed to cancel order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// @Summary List orders for a restaurant
// @Tags staff
// @Security BearerAuth
// @Produce json
// @Param restaurant_id query string false "Restaurant ID (admin only)"
// @Success 200 {array} models.Order
// @Router /api/v1/staff/orders [get]
func (h *OrderHandler) GetRestaurantOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, err := h.orderService.GetRestaurantOrders(c.Request.Context(), actorFrom(c), c.Query("restaurant_id"), limit, offset)
	if err != nil {
		respondOrderError(c, "Failed to get restaurant orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// @Summary Move an order along the fulfilment pipeline
// @Tags staff
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.UpdateOrderStatusRequest true "New status"
// @Success 200 {object} models.Order
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/staff/orders/{id}/status [put]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req services.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		respondOrderError(c, "Failed to update order status", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware *middleware.AuthMiddleware) {
	orders := router.Group("/orders", authMiddleware.AuthRequired())
	{
		orders.GET("", h.GetUserOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.POST("/:id/cancel", h.CancelOrder)
	}

	staff := router.Group("/staff/orders", authMiddleware.AuthRequired(), authMiddleware.FulfilmentRequired())
	{
		staff.GET("", h.GetRestaurantOrders)
		staff.PUT("/:id/status", h.UpdateOrderStatus)
	}
}
