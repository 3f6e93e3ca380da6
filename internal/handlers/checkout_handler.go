package handlers

import (
	"context"
	"net/http"

	"swadhan-eats/internal/middleware"
	"swadhan-eats/internal/models"
	"swadhan-eats/internal/services"

	"github.com/gin-gonic/gin"
)

// CheckoutServiceInterface defines the contract for the checkout process
type CheckoutServiceInterface interface {
	State(userID string) *services.CheckoutView
	Start(ctx context.Context, userID string, req services.StartCheckoutRequest) (*services.CheckoutView, error)
	ConfirmCashOnDelivery(ctx context.Context, userID string, confirmed bool) (*services.CheckoutView, error)
	ConfirmUPIPayment(ctx context.Context, userID string) (*services.CheckoutView, error)
	ResolveGatewayPayment(ctx context.Context, userID string, outcome models.PaymentOutcome) (*services.CheckoutView, error)
	RetryGatewayPayment(ctx context.Context, userID string) (*services.CheckoutView, error)
	AbandonPendingOrder(ctx context.Context, userID, reason string) (*services.CheckoutView, error)
	Reset(userID string) (*services.CheckoutView, error)
}

type CheckoutHandler struct {
	checkoutService CheckoutServiceInterface
}

func NewCheckoutHandler(checkoutService CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware *middleware.AuthMiddleware) {
	checkout := router.Group("/checkout", authMiddleware.AuthRequired())
	{
		checkout.GET("", h.GetState)
		checkout.POST("", h.Start)
		checkout.POST("/cod/confirm", h.ConfirmCashOnDelivery)
		checkout.POST("/upi/confirm", h.ConfirmUPIPayment)
		checkout.POST("/gateway/outcome", h.GatewayOutcome)
		checkout.POST("/gateway/retry", h.RetryGatewayPayment)
		checkout.POST("/abandon", h.Abandon)
		checkout.POST("/reset", h.Reset)
	}
}

// @Summary Current checkout state
// @Tags checkout
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.CheckoutView
// @Router /api/v1/checkout [get]
func (h *CheckoutHandler) GetState(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, h.checkoutService.State(userID))
}

// @Summary Start checkout with a payment method
// @Description cod and direct UPI wait for confirmation, the gateway returns a payment session, mock online charges immediately
// @Tags checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body services.StartCheckoutRequest true "Payment method and delivery address"
// @Success 200 {object} services.CheckoutView
// @Failure 400 {object} CheckoutErrorResponse
// @Failure 402 {object} CheckoutErrorResponse
// @Failure 409 {object} CheckoutErrorResponse
// @Failure 502 {object} CheckoutErrorResponse
// @Router /api/v1/checkout [post]
func (h *CheckoutHandler) Start(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.checkoutService.Start(c.Request.Context(), userID, req)
	respondCheckout(c, view, err)
}

// @Summary Answer the cash-on-delivery prompt
// @Tags checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body services.ConfirmCODRequest true "Confirmation"
// @Success 200 {object} services.CheckoutView
// @Router /api/v1/checkout/cod/confirm [post]
func (h *CheckoutHandler) ConfirmCashOnDelivery(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.ConfirmCODRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.checkoutService.ConfirmCashOnDelivery(c.Request.Context(), userID, req.Confirmed)
	respondCheckout(c, view, err)
}

// @Summary Attest that the UPI transfer was made
// @Tags checkout
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.CheckoutView
// @Router /api/v1/checkout/upi/confirm [post]
func (h *CheckoutHandler) ConfirmUPIPayment(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	view, err := h.checkoutService.ConfirmUPIPayment(c.Request.Context(), userID)
	respondCheckout(c, view, err)
}

// @Summary Report the result of the hosted payment dialog
// @Tags checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body services.GatewayOutcomeRequest true "Gateway outcome"
// @Success 200 {object} services.CheckoutView
// @Failure 402 {object} CheckoutErrorResponse
// @Router /api/v1/checkout/gateway/outcome [post]
func (h *CheckoutHandler) GatewayOutcome(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.GatewayOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	outcome, err := req.ToOutcome()
	if err != nil {
		respondCheckout(c, nil, err)
		return
	}

	view, err := h.checkoutService.ResolveGatewayPayment(c.Request.Context(), userID, outcome)
	respondCheckout(c, view, err)
}

// @Summary Reopen payment for the pending order
// @Tags checkout
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.CheckoutView
// @Router /api/v1/checkout/gateway/retry [post]
func (h *CheckoutHandler) RetryGatewayPayment(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	view, err := h.checkoutService.RetryGatewayPayment(c.Request.Context(), userID)
	respondCheckout(c, view, err)
}

// @Summary Cancel the pending order left by a failed payment
// @Tags checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body services.AbandonRequest false "Reason"
// @Success 200 {object} services.CheckoutView
// @Router /api/v1/checkout/abandon [post]
func (h *CheckoutHandler) Abandon(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	var req services.AbandonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	view, err := h.checkoutService.AbandonPendingOrder(c.Request.Context(), userID, req.Reason)
	respondCheckout(c, view, err)
}

// @Summary Return checkout to idle, keeping the cart
// @Tags checkout
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.CheckoutView
// @Failure 409 {object} CheckoutErrorResponse
// @Router /api/v1/checkout/reset [post]
func (h *CheckoutHandler) Reset(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		abortUnauthorized(c)
		return
	}

	view, err := h.checkoutService.Reset(userID)
	respondCheckout(c, view, err)
}
