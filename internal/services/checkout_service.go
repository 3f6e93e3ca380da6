package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"swadhan-eats/internal/models"
)

// OrderAPI is the order backend checkout submits to.
type OrderAPI interface {
	CreateOrder(ctx context.Context, userID string, intent models.OrderIntent) (*OrderReceipt, error)
	VerifyPayment(ctx context.Context, userID string, attempt models.PaymentAttempt) (*VerificationResult, error)
	CancelOrder(ctx context.Context, userID, orderID, reason string) (string, error)
}

// PaymentGateway opens a hosted payment session for a stored order.
type PaymentGateway interface {
	CreateGatewayOrder(ctx context.Context, orderID string, amount float64) (*GatewayOrder, error)
	KeyID() string
}

// PaymentSimulator charges without a real gateway. A declined charge returns ErrPaymentDeclined.
type PaymentSimulator interface {
	Charge(ctx context.Context, amount float64) (string, error)
}

// IdentityProvider gives checkout read-only access to the customer's profile.
type IdentityProvider interface {
	Profile(ctx context.Context, userID string) (*UserProfile, error)
}

type CheckoutOptions struct {
	MerchantName      string
	UPIPayeeVPA       string
	UPIPayeeName      string
	Currency          string
	GatewayRetryLimit int
}

type StartCheckoutRequest struct {
	PaymentMethod   string `json:"payment_method" binding:"required"`
	DeliveryAddress string `json:"delivery_address"`
	DeliveryCity    string `json:"delivery_city"`
}

type GatewayOutcomeRequest struct {
	Outcome   models.PaymentOutcomeKind `json:"outcome" binding:"required"`
	PaymentID string                    `json:"razorpay_payment_id"`
	Signature string                    `json:"razorpay_signature"`
	Reason    string                    `json:"reason"`
}

// ToOutcome converts the wire form into the closed outcome type.
func (r GatewayOutcomeRequest) ToOutcome() (models.PaymentOutcome, error) {
	switch r.Outcome {
	case models.OutcomeSuccess:
		if r.PaymentID == "" || r.Signature == "" {
			return models.PaymentOutcome{}, validationError("payment id and signature are required")
		}
		return models.PaymentSucceeded(r.PaymentID, r.Signature), nil
	case models.OutcomeCancelled:
		return models.PaymentCancelled(), nil
	case models.OutcomeFailed:
		return models.PaymentFailedWith(r.Reason), nil
	}
	return models.PaymentOutcome{}, validationError(fmt.Sprintf("unknown payment outcome %q", r.Outcome))
}

type ConfirmCODRequest struct {
	Confirmed bool `json:"confirmed"`
}

type AbandonRequest struct {
	Reason string `json:"reason"`
}

// CODConfirmation is the prompt echoed back before a cash order is placed.
type CODConfirmation struct {
	DeliveryAddress string  `json:"delivery_address"`
	DeliveryCity    string  `json:"delivery_city"`
	TotalAmount     float64 `json:"total_amount"`
	Message         string  `json:"message"`
}

type GatewayPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type GatewayRetry struct {
	Enabled  bool `json:"enabled"`
	MaxCount int  `json:"max_count"`
}

// GatewaySession is everything the client needs to open the hosted payment dialog.
type GatewaySession struct {
	KeyID           string         `json:"key"`
	GatewayOrderRef string         `json:"order_id"`
	LocalOrderID    string         `json:"local_order_id"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Prefill         GatewayPrefill `json:"prefill"`
	Retry           GatewayRetry   `json:"retry"`
}

// UPIPayment is the scannable payment request for direct UPI.
type UPIPayment struct {
	PayeeVPA  string  `json:"payee_vpa"`
	PayeeName string  `json:"payee_name"`
	Amount    float64 `json:"amount"`
	URI       string  `json:"uri"`
}

type CheckoutView struct {
	State          models.CheckoutState `json:"state"`
	PaymentMethod  models.PaymentMethod `json:"payment_method,omitempty"`
	FailureReason  models.FailureReason `json:"failure_reason,omitempty"`
	PendingOrderID string               `json:"pending_order_id,omitempty"`
	OrderID        string               `json:"order_id,omitempty"`
	TotalAmount    float64              `json:"total_amount,omitempty"`
	Message        string               `json:"message,omitempty"`
	COD            *CODConfirmation     `json:"cod,omitempty"`
	Gateway        *GatewaySession      `json:"gateway,omitempty"`
	UPI            *UPIPayment          `json:"upi,omitempty"`
}

// checkoutSession is one customer's checkout. Fields are guarded by mu; network
// calls run with mu released while state is submitting.
type checkoutSession struct {
	mu sync.Mutex

	state          models.CheckoutState
	method         models.PaymentMethod
	failure        models.FailureReason
	address        string
	city           string
	total          float64
	snapshot       models.CartSnapshot
	pendingOrderID string
	orderID        string
	gateway        *GatewaySession
	cod            *CODConfirmation
	upi            *UPIPayment
	message        string

	lastUsed time.Time // guarded by CheckoutService.mu
}

func (s *checkoutSession) view() *CheckoutView {
	return &CheckoutView{
		State:          s.state,
		PaymentMethod:  s.method,
		FailureReason:  s.failure,
		PendingOrderID: s.pendingOrderID,
		OrderID:        s.orderID,
		TotalAmount:    s.total,
		Message:        s.message,
		COD:            s.cod,
		Gateway:        s.gateway,
		UPI:            s.upi,
	}
}

// reset clears every field except mu, which the caller holds.
func (s *checkoutSession) reset() {
	s.state = models.CheckoutIdle
	s.method = ""
	s.failure = models.FailureNone
	s.address = ""
	s.city = ""
	s.total = 0
	s.snapshot = models.CartSnapshot{}
	s.pendingOrderID = ""
	s.orderID = ""
	s.gateway = nil
	s.cod = nil
	s.upi = nil
	s.message = ""
}

func (s *checkoutSession) fail(reason models.FailureReason, message string) {
	s.state = models.CheckoutFailed
	s.failure = reason
	s.message = message
	s.cod = nil
	s.upi = nil
}

func (s *checkoutSession) complete(orderID, message string) {
	s.state = models.CheckoutCompleted
	s.failure = models.FailureNone
	s.orderID = orderID
	s.pendingOrderID = ""
	s.message = message
	s.cod = nil
	s.upi = nil
	s.gateway = nil
}

// CheckoutService drives each customer's checkout from cart to a placed order.
type CheckoutService struct {
	carts     *CartService
	orders    OrderAPI
	gateway   PaymentGateway
	simulator PaymentSimulator
	identity  IdentityProvider
	opts      CheckoutOptions

	mu       sync.Mutex
	sessions map[string]*checkoutSession
}

func NewCheckoutService(
	carts *CartService,
	orders OrderAPI,
	gateway PaymentGateway,
	simulator PaymentSimulator,
	identity IdentityProvider,
	opts CheckoutOptions,
) *CheckoutService {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.MerchantName == "" {
		opts.MerchantName = "Swadhan Eats"
	}
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		gateway:   gateway,
		simulator: simulator,
		identity:  identity,
		opts:      opts,
		sessions:  make(map[string]*checkoutSession),
	}
}

func (s *CheckoutService) session(userID string) *checkoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &checkoutSession{state: models.CheckoutIdle}
		s.sessions[userID] = sess
	}
	sess.lastUsed = time.Now()
	return sess
}

// EvictIdle drops sessions not touched since before, except those with a
// request in flight. A pending gateway order left behind is expired by the
// order sweeper.
func (s *CheckoutService) EvictIdle(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for userID, sess := range s.sessions {
		if !sess.lastUsed.Before(before) {
			continue
		}
		sess.mu.Lock()
		submitting := sess.state == models.CheckoutSubmitting
		sess.mu.Unlock()
		if submitting {
			continue
		}
		delete(s.sessions, userID)
		evicted++
	}
	return evicted
}

// UPIPaymentURI builds the upi://pay link encoded in the payment QR code.
func UPIPaymentURI(vpa, payeeName string, amount float64) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%.2f&cu=INR&tn=%s",
		uriComponent(vpa), uriComponent(payeeName), amount, uriComponent("Order payment"))
}

func uriComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// classify maps an order backend error onto the checkout taxonomy.
func classify(err error, message string) *CheckoutError {
	if errors.Is(err, ErrInvalidOrder) {
		return &CheckoutError{Kind: ErrValidation, Message: message, Err: err}
	}
	return networkError(message, err)
}

// State returns the customer's current checkout position.
func (s *CheckoutService) State(userID string) *CheckoutView {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

// Start begins checkout with the chosen payment method. Preconditions are
// checked before any order or payment call is made.
func (s *CheckoutService) Start(ctx context.Context, userID string, req StartCheckoutRequest) (*CheckoutView, error) {
	if userID == "" {
		return nil, validationError("please sign in to place an order")
	}
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, &CheckoutError{Kind: ErrValidation, Message: "please choose a payment method", Err: err}
	}

	profile, err := s.identity.Profile(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, validationError("please sign in to place an order")
	}
	if err != nil {
		return nil, networkError("could not load your profile", err)
	}

	store := s.carts.Store(ctx, userID)
	snapshot := store.Snapshot()
	if snapshot.IsEmpty() {
		return nil, validationError("your cart is empty")
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		address = strings.TrimSpace(profile.DefaultAddress)
	}
	if address == "" {
		return nil, validationError("please provide a delivery address")
	}
	city := strings.TrimSpace(req.DeliveryCity)
	if city == "" {
		city = profile.City
	}
	if city == "" {
		city = "Unknown"
	}

	total := store.BillSummary(s.carts.Rates()).TotalAmount

	sess := s.session(userID)
	sess.mu.Lock()
	if sess.state.IsBusy() {
		sess.mu.Unlock()
		return nil, &CheckoutError{Kind: ErrCheckoutInProgress, Message: "your order is already being placed"}
	}
	if sess.state == models.CheckoutFailed && sess.pendingOrderID != "" {
		sess.mu.Unlock()
		return nil, &CheckoutError{Kind: ErrInvalidTransition,
			Message: "an unpaid order is waiting; retry the payment or abandon the order first"}
	}
	sess.reset()
	sess.method = method
	sess.address = address
	sess.city = city
	sess.total = total
	sess.snapshot = snapshot

	switch method {
	case models.PaymentCashOnDelivery:
		sess.state = models.CheckoutAwaitingCODConfirmation
		sess.cod = &CODConfirmation{
			DeliveryAddress: address,
			DeliveryCity:    city,
			TotalAmount:     total,
			Message: fmt.Sprintf("You will pay ₹%.2f to the delivery executive at %s, %s. Place the order?",
				total, address, city),
		}
		view := sess.view()
		sess.mu.Unlock()
		return view, nil

	case models.PaymentDirectUPI:
		sess.state = models.CheckoutAwaitingUPIConfirmation
		sess.upi = &UPIPayment{
			PayeeVPA:  s.opts.UPIPayeeVPA,
			PayeeName: s.opts.UPIPayeeName,
			Amount:    total,
			URI:       UPIPaymentURI(s.opts.UPIPayeeVPA, s.opts.UPIPayeeName, total),
		}
		view := sess.view()
		sess.mu.Unlock()
		return view, nil

	case models.PaymentGateway:
		sess.state = models.CheckoutSubmitting
		sess.mu.Unlock()
		return s.startGateway(ctx, userID, sess, snapshot, profile)

	case models.PaymentMockOnline:
		sess.state = models.CheckoutSubmitting
		sess.mu.Unlock()
		return s.startMockOnline(ctx, userID, sess, snapshot)
	}

	sess.reset()
	sess.mu.Unlock()
	return nil, validationError("unsupported payment method")
}

// startGateway stores a pending order first so the payment has a durable anchor.
func (s *CheckoutService) startGateway(ctx context.Context, userID string, sess *checkoutSession, snapshot models.CartSnapshot, profile *UserProfile) (*CheckoutView, error) {
	sess.mu.Lock()
	intent := models.NewOrderIntent(snapshot, sess.address, sess.city, models.PaymentGateway, models.PaymentStatusPending)
	sess.mu.Unlock()

	receipt, err := s.orders.CreateOrder(ctx, userID, intent)
	if err != nil {
		cerr := classify(err, "could not place your order")
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if errors.Is(cerr, ErrValidation) {
			sess.reset()
		} else {
			log.Printf("Order submission failed for user %s: %v", userID, err)
			sess.fail(models.FailureNetworkError, cerr.Error())
		}
		return sess.view(), cerr
	}

	sess.mu.Lock()
	sess.pendingOrderID = receipt.OrderID
	sess.total = receipt.TotalAmount
	sess.mu.Unlock()

	return s.openGatewaySession(ctx, userID, sess, receipt.OrderID, receipt.TotalAmount, profile)
}

func (s *CheckoutService) openGatewaySession(ctx context.Context, userID string, sess *checkoutSession, orderID string, amount float64, profile *UserProfile) (*CheckoutView, error) {
	gatewayOrder, err := s.gateway.CreateGatewayOrder(ctx, orderID, amount)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err != nil {
		log.Printf("Gateway order creation failed for order %s: %v", orderID, err)
		cerr := networkError("could not start the payment", err)
		sess.fail(models.FailureNetworkError, cerr.Error())
		return sess.view(), cerr
	}

	sess.state = models.CheckoutAwaitingGatewayPayment
	sess.failure = models.FailureNone
	sess.message = ""
	sess.gateway = &GatewaySession{
		KeyID:           s.gateway.KeyID(),
		GatewayOrderRef: gatewayOrder.GatewayOrderRef,
		LocalOrderID:    orderID,
		Amount:          gatewayOrder.AmountPaise,
		Currency:        gatewayOrder.Currency,
		Name:            s.opts.MerchantName,
		Description:     "Order #" + shortRef(orderID),
		Prefill: GatewayPrefill{
			Name:    profile.Name,
			Email:   profile.Email,
			Contact: profile.Phone,
		},
		Retry: GatewayRetry{Enabled: s.opts.GatewayRetryLimit > 0, MaxCount: s.opts.GatewayRetryLimit},
	}
	return sess.view(), nil
}

// startMockOnline charges first; nothing is stored unless the charge succeeds.
func (s *CheckoutService) startMockOnline(ctx context.Context, userID string, sess *checkoutSession, snapshot models.CartSnapshot) (*CheckoutView, error) {
	sess.mu.Lock()
	total := sess.total
	intent := models.NewOrderIntent(snapshot, sess.address, sess.city, models.PaymentMockOnline, models.PaymentStatusPaid)
	sess.mu.Unlock()

	if _, err := s.simulator.Charge(ctx, total); err != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.reset()
		sess.message = "Payment failed. Please try again or choose another payment method."
		return sess.view(), declinedError(models.FailurePaymentFailed, "payment failed", err)
	}

	return s.submit(ctx, userID, sess, intent)
}

// submit creates the order and, on success, clears the cart. The session must
// already be in the submitting state.
func (s *CheckoutService) submit(ctx context.Context, userID string, sess *checkoutSession, intent models.OrderIntent) (*CheckoutView, error) {
	receipt, err := s.orders.CreateOrder(ctx, userID, intent)

	if err == nil {
		s.clearCart(ctx, userID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err != nil {
		cerr := classify(err, "could not place your order")
		if errors.Is(cerr, ErrValidation) {
			sess.reset()
		} else {
			log.Printf("Order submission failed for user %s: %v", userID, err)
			sess.fail(models.FailureNetworkError, cerr.Error())
		}
		return sess.view(), cerr
	}

	sess.total = receipt.TotalAmount
	sess.complete(receipt.OrderID, "Order placed successfully")
	return sess.view(), nil
}

func (s *CheckoutService) clearCart(ctx context.Context, userID string) {
	if err := s.carts.Store(ctx, userID).Clear(ctx); err != nil {
		log.Printf("Order placed but cart clear failed for user %s: %v", userID, err)
	}
}

// checkCartUnchanged resets the session when the cart no longer matches the
// one whose total the customer was shown. The caller holds sess.mu.
func (s *CheckoutService) checkCartUnchanged(ctx context.Context, userID string, sess *checkoutSession) error {
	current := s.carts.Store(ctx, userID).Snapshot()
	if current.IsEmpty() {
		sess.reset()
		return validationError("your cart is empty")
	}
	if !current.Equal(sess.snapshot) {
		sess.reset()
		return validationError("your cart changed after checkout started; please review the new total")
	}
	return nil
}

// ConfirmCashOnDelivery answers the cash-on-delivery prompt. Declining makes no server call.
func (s *CheckoutService) ConfirmCashOnDelivery(ctx context.Context, userID string, confirmed bool) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()

	if sess.state != models.CheckoutAwaitingCODConfirmation {
		state := sess.state
		sess.mu.Unlock()
		return nil, transitionError(state, "confirm a cash order")
	}

	if !confirmed {
		sess.reset()
		view := sess.view()
		sess.mu.Unlock()
		return view, nil
	}

	if err := s.checkCartUnchanged(ctx, userID, sess); err != nil {
		sess.mu.Unlock()
		return nil, err
	}

	sess.state = models.CheckoutSubmitting
	intent := models.NewOrderIntent(sess.snapshot, sess.address, sess.city, models.PaymentCashOnDelivery, models.PaymentStatusPending)
	sess.mu.Unlock()

	return s.submit(ctx, userID, sess, intent)
}

// ConfirmUPIPayment records the customer's own statement that the UPI
// transfer was made. No proof of payment is checked.
func (s *CheckoutService) ConfirmUPIPayment(ctx context.Context, userID string) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()

	if sess.state != models.CheckoutAwaitingUPIConfirmation {
		state := sess.state
		sess.mu.Unlock()
		return nil, transitionError(state, "confirm a UPI payment")
	}

	if err := s.checkCartUnchanged(ctx, userID, sess); err != nil {
		sess.mu.Unlock()
		return nil, err
	}

	sess.state = models.CheckoutSubmitting
	intent := models.NewOrderIntent(sess.snapshot, sess.address, sess.city, models.PaymentDirectUPI, models.PaymentStatusPaid)
	sess.mu.Unlock()

	return s.submit(ctx, userID, sess, intent)
}

// ResolveGatewayPayment applies the result of the hosted payment dialog. The
// pending order is never removed here; it stays as the anchor for a retry.
func (s *CheckoutService) ResolveGatewayPayment(ctx context.Context, userID string, outcome models.PaymentOutcome) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()

	if sess.state != models.CheckoutAwaitingGatewayPayment || sess.gateway == nil {
		state := sess.state
		sess.mu.Unlock()
		return nil, transitionError(state, "report a gateway payment")
	}

	switch outcome.Kind {
	case models.OutcomeCancelled:
		sess.fail(models.FailureUserCancelled, "Payment was cancelled. Your order is saved and you can pay again.")
		view := sess.view()
		sess.mu.Unlock()
		return view, &CheckoutError{Kind: ErrUserCancelled, Reason: models.FailureUserCancelled, Message: "payment cancelled"}

	case models.OutcomeFailed:
		log.Printf("Gateway payment failed for order %s: %s", sess.pendingOrderID, outcome.Reason)
		sess.fail(models.FailurePaymentFailed, "Payment failed. Your order is saved and you can pay again.")
		view := sess.view()
		sess.mu.Unlock()
		var cause error
		if outcome.Reason != "" {
			cause = errors.New(outcome.Reason)
		}
		return view, declinedError(models.FailurePaymentFailed, "payment failed", cause)

	case models.OutcomeSuccess:
		attempt := models.PaymentAttempt{
			GatewayOrderRef:   sess.gateway.GatewayOrderRef,
			GatewayPaymentRef: outcome.PaymentRef,
			GatewaySignature:  outcome.Signature,
			LocalOrderID:      sess.pendingOrderID,
		}
		sess.state = models.CheckoutSubmitting
		sess.mu.Unlock()
		return s.verify(ctx, userID, sess, attempt)
	}

	sess.mu.Unlock()
	return nil, validationError(fmt.Sprintf("unknown payment outcome %q", outcome.Kind))
}

func (s *CheckoutService) verify(ctx context.Context, userID string, sess *checkoutSession, attempt models.PaymentAttempt) (*CheckoutView, error) {
	result, err := s.orders.VerifyPayment(ctx, userID, attempt)

	if err == nil && result.Success {
		s.clearCart(ctx, userID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err != nil {
		log.Printf("Payment verification request failed for order %s: %v", attempt.LocalOrderID, err)
		sess.fail(models.FailureNetworkError, "We could not confirm your payment. Your order is saved as pending.")
		return sess.view(), networkError("payment verification did not complete", err)
	}
	if !result.Success && result.Order != nil && result.Order.OrderStatus == models.OrderStatusCancelled {
		log.Printf("Payment reported for cancelled order %s", attempt.LocalOrderID)
		sess.reset()
		sess.message = "This order was cancelled before the payment was confirmed. Any amount charged will be refunded."
		return sess.view(), declinedError(models.FailureVerificationFailed, "order was cancelled", nil)
	}
	if !result.Success {
		log.Printf("Payment verification rejected for order %s", attempt.LocalOrderID)
		sess.fail(models.FailureVerificationFailed, "Payment verification failed. Your order is saved as pending.")
		return sess.view(), declinedError(models.FailureVerificationFailed, "payment verification failed", nil)
	}

	sess.complete(attempt.LocalOrderID, "Payment successful")
	return sess.view(), nil
}

// RetryGatewayPayment reopens payment for the pending order after a failure.
func (s *CheckoutService) RetryGatewayPayment(ctx context.Context, userID string) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()

	if sess.state != models.CheckoutFailed || sess.method != models.PaymentGateway || sess.pendingOrderID == "" {
		state := sess.state
		sess.mu.Unlock()
		return nil, transitionError(state, "retry payment")
	}

	// The gateway order accepts further attempts, so reuse it when it exists.
	if sess.gateway != nil {
		sess.state = models.CheckoutAwaitingGatewayPayment
		sess.failure = models.FailureNone
		sess.message = ""
		view := sess.view()
		sess.mu.Unlock()
		return view, nil
	}

	sess.state = models.CheckoutSubmitting
	orderID, total := sess.pendingOrderID, sess.total
	sess.mu.Unlock()

	profile, err := s.identity.Profile(ctx, userID)
	if err != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.fail(models.FailureNetworkError, "could not load your profile")
		return sess.view(), networkError("could not load your profile", err)
	}
	return s.openGatewaySession(ctx, userID, sess, orderID, total, profile)
}

// AbandonPendingOrder cancels the pending order left by a failed payment.
func (s *CheckoutService) AbandonPendingOrder(ctx context.Context, userID, reason string) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()

	if sess.state != models.CheckoutFailed || sess.pendingOrderID == "" {
		state := sess.state
		sess.mu.Unlock()
		return nil, transitionError(state, "abandon the order")
	}

	orderID := sess.pendingOrderID
	failure := sess.failure
	sess.state = models.CheckoutSubmitting
	sess.mu.Unlock()

	if reason == "" {
		reason = "payment not completed"
	}
	message, err := s.orders.CancelOrder(ctx, userID, orderID, reason)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err != nil {
		sess.state = models.CheckoutFailed
		sess.failure = failure
		return sess.view(), classify(err, "could not cancel the order")
	}

	sess.reset()
	sess.message = message
	return sess.view(), nil
}

// Reset returns the session to idle. The cart is kept.
func (s *CheckoutService) Reset(userID string) (*CheckoutView, error) {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state.IsBusy() {
		return sess.view(), &CheckoutError{Kind: ErrCheckoutInProgress, Message: "your order is already being placed"}
	}
	sess.reset()
	return sess.view(), nil
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
