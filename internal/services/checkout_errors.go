package services

import (
	"errors"

	"swadhan-eats/internal/models"
)

// Checkout error kinds. Match with errors.Is against a *CheckoutError.
var (
	ErrValidation         = errors.New("validation error")
	ErrNetwork            = errors.New("network error")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrUserCancelled      = errors.New("payment cancelled by user")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidTransition  = errors.New("action not allowed in current checkout state")
)

type CheckoutError struct {
	Kind    error
	Reason  models.FailureReason
	Message string
	Err     error
}

func (e *CheckoutError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CheckoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(message string) *CheckoutError {
	return &CheckoutError{Kind: ErrValidation, Message: message}
}

func networkError(message string, err error) *CheckoutError {
	return &CheckoutError{Kind: ErrNetwork, Reason: models.FailureNetworkError, Message: message, Err: err}
}

func declinedError(reason models.FailureReason, message string, err error) *CheckoutError {
	return &CheckoutError{Kind: ErrPaymentDeclined, Reason: reason, Message: message, Err: err}
}

func transitionError(state models.CheckoutState, action string) *CheckoutError {
	return &CheckoutError{Kind: ErrInvalidTransition, Message: "cannot " + action + " while checkout is " + string(state)}
}
