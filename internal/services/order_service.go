package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/repositories"
	"swadhan-eats/pkg/messaging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder            = errors.New("invalid order")
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderNotCancellable     = errors.New("order can no longer be cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrForbidden               = errors.New("not allowed to act on this order")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
)

// SignatureVerifier is the gateway's proof check for payments and webhooks.
type SignatureVerifier interface {
	VerifyPaymentSignature(gatewayOrderRef, gatewayPaymentRef, signature string) bool
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type OrderService struct {
	orderRepo   repositories.OrderRepository
	paymentRepo repositories.PaymentRepository
	userRepo    repositories.UserRepository
	dishRepo    repositories.DishRepository
	cartRepo    repositories.CartSnapshotRepository
	signatures  SignatureVerifier
	events      messaging.Publisher
	rates       BillingRates
}

// NewOrderService accepts a nil dishRepo (prices then come from the stored
// cart) and a nil events publisher.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	paymentRepo repositories.PaymentRepository,
	userRepo repositories.UserRepository,
	dishRepo repositories.DishRepository,
	cartRepo repositories.CartSnapshotRepository,
	signatures SignatureVerifier,
	events messaging.Publisher,
	rates BillingRates,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		dishRepo:    dishRepo,
		cartRepo:    cartRepo,
		signatures:  signatures,
		events:      events,
		rates:       rates,
	}
}

type OrderReceipt struct {
	OrderID     string        `json:"order_id"`
	TotalAmount float64       `json:"total_amount"`
	Order       *models.Order `json:"order"`
}

type VerificationResult struct {
	Success bool          `json:"success"`
	Order   *models.Order `json:"order"`
}

// Actor is whoever is changing an order's status.
type Actor struct {
	UserID       string
	Role         string
	RestaurantID string
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

func invalidOrder(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, fmt.Sprintf(format, args...))
}

func validateIntent(intent models.OrderIntent) error {
	if len(intent.Items) == 0 {
		return invalidOrder("order has no items")
	}
	if strings.TrimSpace(intent.DeliveryAddress) == "" {
		return invalidOrder("delivery address is required")
	}
	if !intent.PaymentMethod.Valid() {
		return invalidOrder("unknown payment method %q", intent.PaymentMethod)
	}
	if !intent.PaymentStatus.Valid() {
		return invalidOrder("unknown payment status %q", intent.PaymentStatus)
	}
	for _, item := range intent.Items {
		if item.DishID == "" || item.Quantity < 1 {
			return invalidOrder("each item needs a dish and a positive quantity")
		}
	}
	return nil
}

type pricedItem struct {
	ref          models.DishRef
	restaurantID string
}

// priceItems resolves each dish against the catalog, or against the customer's
// stored cart when no catalog is configured.
func (s *OrderService) priceItems(ctx context.Context, userID string, intent models.OrderIntent) ([]models.OrderItem, string, decimal.Decimal, error) {
	lookup := map[string]pricedItem{}
	if s.dishRepo == nil {
		snapshot, err := s.cartRepo.Load(ctx, userID)
		if err != nil {
			return nil, "", decimal.Zero, fmt.Errorf("failed to load cart for pricing: %w", err)
		}
		if snapshot != nil {
			for _, item := range snapshot.Items {
				lookup[item.Dish.ID] = pricedItem{ref: item.Dish, restaurantID: snapshot.RestaurantID}
			}
		}
	}

	var (
		items        []models.OrderItem
		restaurantID string
		subtotal     = decimal.Zero
	)
	for _, line := range intent.Items {
		var priced pricedItem
		if s.dishRepo != nil {
			dish, err := s.dishRepo.GetByID(ctx, line.DishID)
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, "", decimal.Zero, invalidOrder("dish %s does not exist", line.DishID)
			}
			if err != nil {
				return nil, "", decimal.Zero, fmt.Errorf("failed to look up dish: %w", err)
			}
			if !dish.IsAvailable {
				return nil, "", decimal.Zero, invalidOrder("%s is not available", dish.Name)
			}
			priced = pricedItem{ref: dish.Ref(), restaurantID: dish.RestaurantID}
		} else {
			var ok bool
			if priced, ok = lookup[line.DishID]; !ok {
				return nil, "", decimal.Zero, invalidOrder("dish %s is not in the cart", line.DishID)
			}
		}

		if restaurantID == "" {
			restaurantID = priced.restaurantID
		} else if restaurantID != priced.restaurantID {
			return nil, "", decimal.Zero, invalidOrder("all items must come from one restaurant")
		}

		items = append(items, models.OrderItem{
			DishID:    priced.ref.ID,
			Name:      priced.ref.Name,
			UnitPrice: priced.ref.Price,
			Quantity:  line.Quantity,
		})
		subtotal = subtotal.Add(money(priced.ref.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return items, restaurantID, subtotal, nil
}

// CreateOrder prices and stores an order with its payment record.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, intent models.OrderIntent) (*OrderReceipt, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, invalidOrder("invalid user ID")
	}
	if err := validateIntent(intent); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userUUID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, invalidOrder("unknown user")
	}
	if err != nil {
		return nil, err
	}

	items, restaurantID, subtotal, err := s.priceItems(ctx, userID, intent)
	if err != nil {
		return nil, err
	}
	bill := computeBill(subtotal, s.rates)

	status := models.OrderStatusPending
	// Verified charges go straight to the kitchen; attested UPI waits for staff.
	if intent.PaymentStatus == models.PaymentStatusPaid && intent.PaymentMethod != models.PaymentDirectUPI {
		status = models.OrderStatusConfirmed
	}

	order := &models.Order{
		UserID:          userUUID,
		RestaurantID:    restaurantID,
		Items:           items,
		DeliveryAddress: strings.TrimSpace(intent.DeliveryAddress),
		DeliveryCity:    intent.DeliveryCity,
		PaymentMethod:   intent.PaymentMethod,
		PaymentStatus:   intent.PaymentStatus,
		OrderStatus:     status,
		SubTotal:        bill.SubTotal,
		TaxAmount:       bill.TaxAmount,
		DeliveryFee:     bill.DeliveryFee,
		TotalAmount:     bill.TotalAmount,
		CustomerName:    user.Name,
		CustomerContact: user.Phone,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	payment := &models.Payment{
		OrderID: order.ID,
		UserID:  userUUID,
		Amount:  order.TotalAmount,
		Method:  intent.PaymentMethod,
		Status:  intent.PaymentStatus,
		Metadata: models.JSONB{
			"currency": "INR",
		},
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	s.publishOrderEvent(ctx, "order_created", order, order)
	if order.OrderStatus == models.OrderStatusConfirmed {
		s.notifyStatus(ctx, order)
	}

	return &OrderReceipt{
		OrderID:     order.ID.String(),
		TotalAmount: order.TotalAmount,
		Order:       order,
	}, nil
}

func (s *OrderService) ownedOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.orderRepo.GetByID(ctx, orderUUID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if order.UserID.String() != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// VerifyPayment checks a gateway payment against the pending order. A failed
// check is not an error and leaves the order pending.
func (s *OrderService) VerifyPayment(ctx context.Context, userID string, attempt models.PaymentAttempt) (*VerificationResult, error) {
	order, err := s.ownedOrder(ctx, userID, attempt.LocalOrderID)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus == models.OrderStatusCancelled {
		s.flagRefund(ctx, order, attempt.GatewayPaymentRef)
		return &VerificationResult{Success: false, Order: order}, nil
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return &VerificationResult{Success: true, Order: order}, nil
	}

	if order.GatewayOrderRef == "" || order.GatewayOrderRef != attempt.GatewayOrderRef ||
		!s.signatures.VerifyPaymentSignature(attempt.GatewayOrderRef, attempt.GatewayPaymentRef, attempt.GatewaySignature) {
		log.Printf("Payment verification failed for order %s", order.ID)
		return &VerificationResult{Success: false, Order: order}, nil
	}

	if err := s.markPaid(ctx, order, attempt.GatewayPaymentRef); err != nil {
		return nil, err
	}
	return &VerificationResult{Success: true, Order: order}, nil
}

func (s *OrderService) markPaid(ctx context.Context, order *models.Order, paymentRef string) error {
	payment, err := s.paymentRepo.GetByOrderID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get payment record: %w", err)
	}
	payment.Status = models.PaymentStatusPaid
	payment.GatewayPaymentRef = paymentRef
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	order.PaymentStatus = models.PaymentStatusPaid
	if order.OrderStatus == models.OrderStatusPending {
		order.OrderStatus = models.OrderStatusConfirmed
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	s.publishOrderEvent(ctx, "payment_verified", order, map[string]interface{}{
		"order_id":    order.ID.String(),
		"payment_ref": paymentRef,
	})
	s.notifyStatus(ctx, order)
	return nil
}

// flagRefund records money that arrived for an order that was already
// cancelled. The order is left cancelled and unpaid.
func (s *OrderService) flagRefund(ctx context.Context, order *models.Order, paymentRef string) {
	log.Printf("Payment %s arrived for cancelled order %s; refund required", paymentRef, order.ID)
	s.publishOrderEvent(ctx, "payment_refund_required", order, map[string]interface{}{
		"order_id":      order.ID.String(),
		"payment_ref":   paymentRef,
		"cancel_reason": order.CancelReason,
	})
}

// CancelOrder lets a customer cancel an order the kitchen has not started.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID, reason string) (string, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}

	if order.OrderStatus != models.OrderStatusPending && order.OrderStatus != models.OrderStatusConfirmed {
		return "", ErrOrderNotCancellable
	}

	if reason == "" {
		reason = "cancelled by customer"
	}
	oldStatus := order.OrderStatus
	order.OrderStatus = models.OrderStatusCancelled
	order.CancelReason = reason
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return "", fmt.Errorf("failed to cancel order: %w", err)
	}

	s.publishOrderEvent(ctx, "order_cancelled", order, map[string]interface{}{
		"order_id":   order.ID.String(),
		"old_status": oldStatus,
		"reason":     reason,
	})
	s.notifyStatus(ctx, order)

	return "Order cancelled successfully", nil
}

// ExpireStaleOrders cancels gateway orders still unpaid at the cutoff and
// marks their payments failed. It returns how many orders were expired.
func (s *OrderService) ExpireStaleOrders(ctx context.Context, before time.Time, batch int) (int, error) {
	orders, err := s.orderRepo.GetStaleGatewayOrders(ctx, before, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	expired := 0
	for i := range orders {
		order := &orders[i]
		order.OrderStatus = models.OrderStatusCancelled
		order.PaymentStatus = models.PaymentStatusFailed
		order.CancelReason = "payment window expired"
		if err := s.orderRepo.Update(ctx, order); err != nil {
			log.Printf("Failed to expire order %s: %v", order.ID, err)
			continue
		}

		if payment, err := s.paymentRepo.GetByOrderID(ctx, order.ID); err == nil {
			payment.Status = models.PaymentStatusFailed
			if err := s.paymentRepo.Update(ctx, payment); err != nil {
				log.Printf("Failed to fail payment for order %s: %v", order.ID, err)
			}
		}

		s.publishOrderEvent(ctx, "order_expired", order, map[string]interface{}{
			"order_id":   order.ID.String(),
			"created_at": order.CreatedAt,
		})
		expired++
	}
	return expired, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	return s.ownedOrder(ctx, userID, orderID)
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return s.orderRepo.GetByUserID(ctx, userUUID, limit, offset)
}

// GetRestaurantOrders lists the staff member's own restaurant, or any
// restaurant for an admin.
func (s *OrderService) GetRestaurantOrders(ctx context.Context, actor Actor, restaurantID string, limit, offset int) ([]models.Order, error) {
	switch actor.Role {
	case RoleRestaurantStaff:
		if actor.RestaurantID == "" || (restaurantID != "" && restaurantID != actor.RestaurantID) {
			return nil, ErrForbidden
		}
		restaurantID = actor.RestaurantID
	case RoleAdmin:
		if restaurantID == "" {
			return nil, invalidOrder("restaurant_id is required")
		}
	default:
		return nil, ErrForbidden
	}
	return s.orderRepo.GetByRestaurantID(ctx, restaurantID, limit, offset)
}

var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:  {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing:  {models.OrderStatusDispatched, models.OrderStatusCancelled},
	models.OrderStatusDispatched: {models.OrderStatusDelivered, models.OrderStatusCancelled},
}

func isValidStatusTransition(current, next models.OrderStatus) bool {
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

func canSetStatus(actor Actor, order *models.Order, next models.OrderStatus) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleRestaurantStaff:
		return actor.RestaurantID != "" && actor.RestaurantID == order.RestaurantID
	case RoleCourier:
		return next == models.OrderStatusDispatched || next == models.OrderStatusDelivered
	}
	return false
}

// UpdateOrderStatus moves an order along the fulfilment pipeline.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, next models.OrderStatus) (*models.Order, error) {
	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.orderRepo.GetByID(ctx, orderUUID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if !canSetStatus(actor, order, next) {
		return nil, ErrForbidden
	}
	if !isValidStatusTransition(order.OrderStatus, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.OrderStatus, next)
	}

	oldStatus := order.OrderStatus
	order.OrderStatus = next
	// Cash is collected at the door.
	if next == models.OrderStatusDelivered && order.PaymentMethod == models.PaymentCashOnDelivery {
		order.PaymentStatus = models.PaymentStatusPaid
		if payment, err := s.paymentRepo.GetByOrderID(ctx, order.ID); err == nil {
			payment.Status = models.PaymentStatusPaid
			if err := s.paymentRepo.Update(ctx, payment); err != nil {
				log.Printf("Failed to mark COD payment paid for order %s: %v", order.ID, err)
			}
		}
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.publishOrderEvent(ctx, "order_status_updated", order, map[string]interface{}{
		"order_id":   order.ID.String(),
		"old_status": oldStatus,
		"new_status": next,
		"updated_by": actor.UserID,
	})
	s.notifyStatus(ctx, order)

	return order, nil
}

// HandleGatewayWebhook applies asynchronous gateway events. A failed payment
// marks the payment failed and leaves the order pending for another attempt.
func (s *OrderService) HandleGatewayWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.signatures.VerifyWebhookSignature(payload, signature) {
		return ErrInvalidWebhookSignature
	}

	var webhook RazorpayWebhookPayload
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	switch webhook.Event {
	case "payment.captured", "payment.authorized":
		orderRef, paymentRef, err := webhookPayment(webhook.Payload)
		if err != nil {
			return err
		}
		order, err := s.orderRepo.GetByGatewayOrderRef(ctx, orderRef)
		if err != nil {
			return fmt.Errorf("order not found for gateway ref %s: %w", orderRef, err)
		}
		if order.OrderStatus == models.OrderStatusCancelled {
			s.flagRefund(ctx, order, paymentRef)
			return nil
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		return s.markPaid(ctx, order, paymentRef)

	case "payment.failed":
		orderRef, paymentRef, err := webhookPayment(webhook.Payload)
		if err != nil {
			return err
		}
		payment, err := s.paymentRepo.GetByTransactionID(ctx, orderRef)
		if err != nil {
			return fmt.Errorf("payment not found for gateway ref %s: %w", orderRef, err)
		}
		if payment.Status == models.PaymentStatusPaid {
			return nil
		}
		payment.Status = models.PaymentStatusFailed
		payment.GatewayPaymentRef = paymentRef
		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		return nil

	default:
		log.Printf("Unhandled webhook event: %s", webhook.Event)
		return nil
	}
}

func webhookPayment(payload map[string]interface{}) (orderRef, paymentRef string, err error) {
	wrapper, ok := payload["payment"].(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("invalid payment data in webhook")
	}
	// Razorpay nests the payment under payment.entity.
	entity, ok := wrapper["entity"].(map[string]interface{})
	if !ok {
		entity = wrapper
	}

	orderRef, _ = entity["order_id"].(string)
	if orderRef == "" {
		return "", "", fmt.Errorf("missing order_id in payment data")
	}
	paymentRef, _ = entity["id"].(string)
	return orderRef, paymentRef, nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, order *models.Order, data interface{}) {
	if s.events == nil {
		return
	}
	event := messaging.OrderEvent{
		Type:    eventType,
		OrderID: order.ID.String(),
		UserID:  order.UserID.String(),
		Data:    data,
	}
	if err := s.events.SendMessage(ctx, messaging.TopicOrderEvents, order.ID.String(), event); err != nil {
		log.Printf("Failed to publish %s for order %s: %v", eventType, order.ID, err)
	}
}

func (s *OrderService) notifyStatus(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := messaging.NotificationEvent{
		Type:    "order_status_update",
		UserID:  order.UserID.String(),
		Title:   "Order Update",
		Message: statusMessage(order.OrderStatus),
		Metadata: map[string]interface{}{
			"order_id": order.ID.String(),
			"status":   string(order.OrderStatus),
			"phone":    order.CustomerContact,
		},
	}
	if err := s.events.SendMessage(ctx, messaging.TopicNotificationEvents, order.UserID.String(), event); err != nil {
		log.Printf("Failed to publish notification for order %s: %v", order.ID, err)
	}
}

func statusMessage(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusConfirmed:
		return "Your order has been confirmed by the restaurant"
	case models.OrderStatusPreparing:
		return "Your order is being prepared"
	case models.OrderStatusDispatched:
		return "Your order is on the way"
	case models.OrderStatusDelivered:
		return "Your order has been delivered"
	case models.OrderStatusCancelled:
		return "Your order has been cancelled"
	}
	return "Your order status has been updated"
}
