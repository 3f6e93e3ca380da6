package models

import "fmt"

// PaymentMethod is the closed set of checkout payment paths.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMockOnline     PaymentMethod = "mock_online"
	PaymentGateway        PaymentMethod = "gateway"
	PaymentDirectUPI      PaymentMethod = "direct_upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentMockOnline, PaymentGateway, PaymentDirectUPI:
		return true
	}
	return false
}

// ParsePaymentMethod accepts the canonical names plus the short aliases
// the web client has historically sent ("cod", "online", "razorpay", "upi-direct").
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "cod":
		return PaymentCashOnDelivery, nil
	case "online":
		return PaymentMockOnline, nil
	case "razorpay":
		return PaymentGateway, nil
	case "upi-direct", "upi":
		return PaymentDirectUPI, nil
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// OrderStatus tracks fulfilment of a placed order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderIntentItem is one priced-later line of an order submission.
type OrderIntentItem struct {
	DishID   string `json:"dish_id"`
	Quantity int    `json:"quantity"`
}

// OrderIntent is the transient payload sent to create an order.
type OrderIntent struct {
	Items           []OrderIntentItem `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryCity    string            `json:"delivery_city"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
}

// NewOrderIntent builds an intent from the cart contents.
func NewOrderIntent(snapshot CartSnapshot, address, city string, method PaymentMethod, status PaymentStatus) OrderIntent {
	items := make([]OrderIntentItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, OrderIntentItem{DishID: item.Dish.ID, Quantity: item.Quantity})
	}
	return OrderIntent{
		Items:           items,
		DeliveryAddress: address,
		DeliveryCity:    city,
		PaymentMethod:   method,
		PaymentStatus:   status,
	}
}

// PaymentAttempt is produced when the gateway reports a completed charge.
type PaymentAttempt struct {
	GatewayOrderRef   string `json:"razorpay_order_id"`
	GatewayPaymentRef string `json:"razorpay_payment_id"`
	GatewaySignature  string `json:"razorpay_signature"`
	LocalOrderID      string `json:"order_id"`
}

// CheckoutState is the position of a customer's checkout session.
type CheckoutState string

const (
	CheckoutIdle                    CheckoutState = "idle"
	CheckoutAwaitingCODConfirmation CheckoutState = "awaiting_cod_confirmation"
	CheckoutSubmitting              CheckoutState = "submitting"
	CheckoutAwaitingGatewayPayment  CheckoutState = "awaiting_gateway_payment"
	CheckoutAwaitingUPIConfirmation CheckoutState = "awaiting_upi_confirmation"
	CheckoutCompleted               CheckoutState = "completed"
	CheckoutFailed                  CheckoutState = "failed"
)

// IsBusy reports whether a new submission must be refused.
func (s CheckoutState) IsBusy() bool {
	return s == CheckoutSubmitting || s == CheckoutAwaitingGatewayPayment
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutCompleted || s == CheckoutFailed
}

type FailureReason string

const (
	FailureNone               FailureReason = ""
	FailureUserCancelled      FailureReason = "user_cancelled"
	FailurePaymentFailed      FailureReason = "payment_failed"
	FailureVerificationFailed FailureReason = "verification_failed"
	FailureNetworkError       FailureReason = "network_error"
)

// PaymentOutcomeKind enumerates what a gateway session can report.
type PaymentOutcomeKind string

const (
	OutcomeSuccess   PaymentOutcomeKind = "success"
	OutcomeCancelled PaymentOutcomeKind = "cancelled"
	OutcomeFailed    PaymentOutcomeKind = "failed"
)

// PaymentOutcome is the single result of a gateway payment session.
// PaymentRef and Signature are set only for OutcomeSuccess, Reason only for OutcomeFailed.
type PaymentOutcome struct {
	Kind       PaymentOutcomeKind
	PaymentRef string
	Signature  string
	Reason     string
}

func PaymentSucceeded(paymentRef, signature string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeSuccess, PaymentRef: paymentRef, Signature: signature}
}

func PaymentCancelled() PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeCancelled}
}

func PaymentFailedWith(reason string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeFailed, Reason: reason}
}
