package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookProcessor applies signed gateway events.
type WebhookProcessor interface {
	HandleGatewayWebhook(ctx context.Context, payload []byte, signature string) error
}

type RazorpayHandler struct {
	webhooks WebhookProcessor
}

func NewRazorpayHandler(webhooks WebhookProcessor) *RazorpayHandler {
	return &RazorpayHandler{webhooks: webhooks}
}

// PaymentWebhook godoc
// @Summary Handle Razorpay payment webhooks
// @Description Captured payments confirm the order; failed payments leave it pending for another attempt
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "Razorpay webhook signature"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/webhooks/razorpay [post]
func (h *RazorpayHandler) PaymentWebhook(c *gin.Context) {
	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing webhook signature",
			Message: "X-Razorpay-Signature header is required",
		})
		return
	}

	// The signature covers the raw bytes, so read before any binding.
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to read request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.webhooks.HandleGatewayWebhook(c.Request.Context(), body, signature); err != nil {
		respondOrderError(c, "Failed to process webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Webhook processed successfully",
	})
}

// RegisterRoutes needs no auth; the gateway signs each request.
func (h *RazorpayHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/razorpay", h.PaymentWebhook)
}
