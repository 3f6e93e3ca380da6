package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"swadhan-eats/internal/services"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "Unauthorized",
		Message: "User ID not found",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request body",
		Message: err.Error(),
	})
}

// checkoutStatus maps a checkout error kind to its HTTP status.
func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCheckoutInProgress), errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrUserCancelled):
		return http.StatusOK
	case errors.Is(err, services.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// CheckoutErrorResponse carries the session alongside the error so the client
// can render the failed state.
type CheckoutErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Reason  string                 `json:"failure_reason,omitempty"`
	State   *services.CheckoutView `json:"checkout,omitempty"`
}

func respondCheckout(c *gin.Context, view *services.CheckoutView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}

	status := checkoutStatus(err)
	if status == http.StatusOK {
		c.JSON(status, view)
		return
	}
	if status == http.StatusInternalServerError {
		log.Printf("Unexpected checkout error: %v", err)
	}

	resp := CheckoutErrorResponse{Error: http.StatusText(status), Message: err.Error(), State: view}
	var cerr *services.CheckoutError
	if errors.As(err, &cerr) {
		if cerr.Message != "" {
			resp.Message = cerr.Message
		}
		resp.Reason = string(cerr.Reason)
	}
	c.JSON(status, resp)
}

func orderStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrOrderNotCancellable), errors.Is(err, services.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidWebhookSignature):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondOrderError(c *gin.Context, action string, err error) {
	status := orderStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", action, err)
	}
	c.JSON(status, ErrorResponse{Error: action, Message: err.Error()})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
