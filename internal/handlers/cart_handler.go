package handlers

import (
	"errors"
	"log"
	"net/http"

	"swadhan-eats/internal/middleware"
	"swadhan-eats/internal/services"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	cartService CartServiceInterface
}

func NewCartHandler(cartService CartServiceInterface) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// RegisterRoutes registers the routes for cart management
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware *middleware.AuthMiddleware) {
	cart := router.Group("/cart", authMiddleware.AuthRequired())
	{
		cart.GET("", h.GetCart)
		cart.DELETE("", h.ClearCart)
		cart.GET("/bill-summary", h.GetBillSummary)
		cart.POST("/items", h.AddItem)
		cart.PUT("/items/:dish_id", h.UpdateQuantity)
		cart.DELETE("/items/:dish_id", h.RemoveItem)
	}
}

// respondCart writes the cart even when saving failed; the change is live in
// memory and the client should reflect it.
func (h *CartHandler) respondCart(c *gin.Context, action string, cart *services.CartResponse, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, cart)
	case errors.Is(err, services.ErrCartPersist):
		log.Printf("Cart for user %s not persisted: %v", middleware.GetUserID(c), err)
		c.Header("X-Cart-Persisted", "false")
		c.JSON(http.StatusOK, cart)
	case errors.Is(err, services.ErrInvalidCartRequest), errors.Is(err, services.ErrDishUnavailable):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: action, Message: err.Error()})
	case errors.Is(err, services.ErrDishNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: action, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: action, Message: err.Error()})
	}
}

// GetCart godoc
// @Summary Get user's cart
// @Tags cart
// @Produce json
// @Success 200 {object} services.CartResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	c.JSON(http.StatusOK, h.cartService.GetCart(c.Request.Context(), userID))
}

// AddItem godoc
// @Summary Add one unit of a dish to the cart
// @Description A dish from another restaurant replaces the current cart
// @Tags cart
// @Accept json
// @Produce json
// @Param item body services.AddCartItemRequest true "Dish to add"
// @Success 200 {object} services.CartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), userID, req)
	h.respondCart(c, "Failed to add item to cart", cart, err)
}

// UpdateQuantity godoc
// @Summary Set the quantity of a cart line
// @Description A quantity of zero or less removes the line
// @Tags cart
// @Accept json
// @Produce json
// @Param dish_id path string true "Dish ID"
// @Param item body services.UpdateCartItemRequest true "New quantity"
// @Success 200 {object} services.CartResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/cart/items/{dish_id} [put]
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cart, err := h.cartService.UpdateQuantity(c.Request.Context(), userID, c.Param("dish_id"), *req.Quantity)
	h.respondCart(c, "Failed to update cart item", cart, err)
}

// RemoveItem godoc
// @Summary Remove a dish from the cart
// @Tags cart
// @Produce json
// @Param dish_id path string true "Dish ID"
// @Success 200 {object} services.CartResponse
// @Router /api/v1/cart/items/{dish_id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	cart, err := h.cartService.RemoveItem(c.Request.Context(), userID, c.Param("dish_id"))
	h.respondCart(c, "Failed to remove item from cart", cart, err)
}

// ClearCart godoc
// @Summary Empty the cart
// @Tags cart
// @Produce json
// @Success 200 {object} services.CartResponse
// @Router /api/v1/cart [delete]
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	cart, err := h.cartService.ClearCart(c.Request.Context(), userID)
	h.respondCart(c, "Failed to clear cart", cart, err)
}

// GetBillSummary godoc
// @Summary Bill for the current cart
// @Tags cart
// @Produce json
// @Success 200 {object} models.BillSummary
// @Router /api/v1/cart/bill-summary [get]
func (h *CartHandler) GetBillSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	c.JSON(http.StatusOK, h.cartService.BillSummary(c.Request.Context(), userID))
}
