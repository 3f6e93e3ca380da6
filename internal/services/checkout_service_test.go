package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"swadhan-eats/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderAPI struct {
	mock.Mock
}

func (m *MockOrderAPI) CreateOrder(ctx context.Context, userID string, intent models.OrderIntent) (*OrderReceipt, error) {
	args := m.Called(ctx, userID, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderReceipt), args.Error(1)
}

func (m *MockOrderAPI) VerifyPayment(ctx context.Context, userID string, attempt models.PaymentAttempt) (*VerificationResult, error) {
	args := m.Called(ctx, userID, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VerificationResult), args.Error(1)
}

func (m *MockOrderAPI) CancelOrder(ctx context.Context, userID, orderID, reason string) (string, error) {
	args := m.Called(ctx, userID, orderID, reason)
	return args.String(0), args.Error(1)
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGateway) CreateGatewayOrder(ctx context.Context, orderID string, amount float64) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &GatewayOrder{GatewayOrderRef: "order_gw1", AmountPaise: toPaise(amount), Currency: "INR"}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type fakeSimulator struct {
	calls int
	err   error
}

func (s *fakeSimulator) Charge(ctx context.Context, amount float64) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "mock_txn", nil
}

type fakeIdentity struct {
	profiles map[string]*UserProfile
}

func (f *fakeIdentity) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, ErrUserNotFound
}

type checkoutFixture struct {
	svc       *CheckoutService
	carts     *CartService
	orders    *MockOrderAPI
	gateway   *fakeGateway
	simulator *fakeSimulator
}

const testUser = "11111111-1111-1111-1111-111111111111"

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	carts := NewCartService(newMemoryCartRepo(), nil, testRates)
	orders := new(MockOrderAPI)
	gateway := &fakeGateway{}
	simulator := &fakeSimulator{}
	identity := &fakeIdentity{profiles: map[string]*UserProfile{
		testUser: {ID: testUser, Name: "Asha", Email: "asha@example.in", Phone: "9876543210", DefaultAddress: "12 MG Road", City: "Pune"},
	}}

	svc := NewCheckoutService(carts, orders, gateway, simulator, identity, CheckoutOptions{
		UPIPayeeVPA:       "7058409290-4@axl",
		UPIPayeeName:      "Swadhan Eats",
		GatewayRetryLimit: 3,
	})
	return &checkoutFixture{svc: svc, carts: carts, orders: orders, gateway: gateway, simulator: simulator}
}

func (f *checkoutFixture) fillCart(t *testing.T) models.CartSnapshot {
	t.Helper()
	store := f.carts.Store(context.Background(), testUser)
	_, err := store.AddItem(context.Background(), pizza, "R1")
	require.NoError(t, err)
	return store.Snapshot()
}

func (f *checkoutFixture) cart() models.CartSnapshot {
	return f.carts.Store(context.Background(), testUser).Snapshot()
}

func TestCheckout_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	_, err := f.svc.Start(ctx, "", StartCheckoutRequest{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Start(ctx, "22222222-2222-2222-2222-222222222222", StartCheckoutRequest{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrValidation, "empty cart")

	f.fillCart(t)
	_, err = f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cheque"})
	assert.ErrorIs(t, err, ErrValidation)

	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, models.CheckoutIdle, f.svc.State(testUser).State)
}

func TestCheckout_MissingAddressWithoutDefault(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.svc.identity = &fakeIdentity{profiles: map[string]*UserProfile{testUser: {ID: testUser, Name: "Asha"}}}
	f.fillCart(t)

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrValidation)

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod", DeliveryAddress: "5 Lake View"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", view.COD.DeliveryCity)
}

func TestCheckout_CODDeclineMakesNoCall(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingCODConfirmation, view.State)
	require.NotNil(t, view.COD)
	assert.Equal(t, "12 MG Road", view.COD.DeliveryAddress)
	assert.Equal(t, "Pune", view.COD.DeliveryCity)
	assert.Equal(t, 316.45, view.COD.TotalAmount)

	view, err = f.svc.ConfirmCashOnDelivery(ctx, testUser, false)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutIdle, view.State)

	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before, f.cart())
}

func TestCheckout_CODConfirmPlacesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	f.orders.On("CreateOrder", mock.Anything, testUser, mock.MatchedBy(func(in models.OrderIntent) bool {
		return in.PaymentMethod == models.PaymentCashOnDelivery &&
			in.PaymentStatus == models.PaymentStatusPending &&
			len(in.Items) == 1 && in.Items[0].DishID == pizza.ID && in.Items[0].Quantity == 1 &&
			in.DeliveryAddress == "7 Hill Road" && in.DeliveryCity == "Pune"
	})).Return(&OrderReceipt{OrderID: "o-1", TotalAmount: 316.45}, nil).Once()

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cash_on_delivery", DeliveryAddress: "7 Hill Road"})
	require.NoError(t, err)

	view, err := f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, view.State)
	assert.Equal(t, "o-1", view.OrderID)
	assert.True(t, f.cart().IsEmpty())
	f.orders.AssertExpectations(t)

	_, err = f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCheckout_CODNetworkFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)

	f.orders.On("CreateOrder", mock.Anything, testUser, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	require.NoError(t, err)

	view, err := f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, models.CheckoutFailed, view.State)
	assert.Equal(t, models.FailureNetworkError, view.FailureReason)
	assert.Equal(t, before, f.cart())

	// the customer can try again
	view, err = f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingCODConfirmation, view.State)
}

func startGateway(t *testing.T, f *checkoutFixture) *CheckoutView {
	t.Helper()
	f.orders.On("CreateOrder", mock.Anything, testUser, mock.MatchedBy(func(in models.OrderIntent) bool {
		return in.PaymentMethod == models.PaymentGateway && in.PaymentStatus == models.PaymentStatusPending
	})).Return(&OrderReceipt{OrderID: "o-gw", TotalAmount: 316.45}, nil).Once()

	view, err := f.svc.Start(context.Background(), testUser, StartCheckoutRequest{PaymentMethod: "razorpay"})
	require.NoError(t, err)
	return view
}

func TestCheckout_GatewaySessionOpened(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart(t)

	view := startGateway(t, f)

	assert.Equal(t, models.CheckoutAwaitingGatewayPayment, view.State)
	assert.Equal(t, "o-gw", view.PendingOrderID)
	require.NotNil(t, view.Gateway)
	assert.Equal(t, "order_gw1", view.Gateway.GatewayOrderRef)
	assert.Equal(t, int64(31645), view.Gateway.Amount)
	assert.Equal(t, "rzp_test_key", view.Gateway.KeyID)
	assert.Equal(t, GatewayPrefill{Name: "Asha", Email: "asha@example.in", Contact: "9876543210"}, view.Gateway.Prefill)
	assert.Equal(t, GatewayRetry{Enabled: true, MaxCount: 3}, view.Gateway.Retry)

	// a second submit while the dialog is open is refused
	_, err := f.svc.Start(context.Background(), testUser, StartCheckoutRequest{PaymentMethod: "razorpay"})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.svc.Reset(testUser)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	f.orders.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCheckout_GatewaySuccessVerifiesAndClears(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)
	startGateway(t, f)

	want := models.PaymentAttempt{
		GatewayOrderRef:   "order_gw1",
		GatewayPaymentRef: "pay_1",
		GatewaySignature:  "sig",
		LocalOrderID:      "o-gw",
	}
	f.orders.On("VerifyPayment", mock.Anything, testUser, want).
		Return(&VerificationResult{Success: true}, nil).Once()

	view, err := f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentSucceeded("pay_1", "sig"))
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, view.State)
	assert.Equal(t, "o-gw", view.OrderID)
	assert.True(t, f.cart().IsEmpty())
	f.orders.AssertExpectations(t)
}

func TestCheckout_GatewayVerificationFailureKeepsOrderAndCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)
	startGateway(t, f)

	f.orders.On("VerifyPayment", mock.Anything, testUser, mock.Anything).
		Return(&VerificationResult{Success: false}, nil).Once()

	view, err := f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentSucceeded("pay_1", "forged"))
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, models.CheckoutFailed, view.State)
	assert.Equal(t, models.FailureVerificationFailed, view.FailureReason)
	assert.Equal(t, "o-gw", view.PendingOrderID)
	assert.Equal(t, before, f.cart())
	f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_GatewayCancelAndFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelled", func(t *testing.T) {
		f := newCheckoutFixture(t)
		before := f.fillCart(t)
		startGateway(t, f)

		view, err := f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentCancelled())
		assert.ErrorIs(t, err, ErrUserCancelled)
		assert.Equal(t, models.CheckoutFailed, view.State)
		assert.Equal(t, models.FailureUserCancelled, view.FailureReason)
		assert.Equal(t, "o-gw", view.PendingOrderID)
		assert.Equal(t, before, f.cart())
	})

	t.Run("failed", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.fillCart(t)
		startGateway(t, f)

		view, err := f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentFailedWith("card declined"))
		assert.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Equal(t, models.FailurePaymentFailed, view.FailureReason)
		assert.Equal(t, "o-gw", view.PendingOrderID)
	})
}

func TestCheckout_GatewayRetryReusesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)
	startGateway(t, f)

	_, _ = f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentCancelled())

	view, err := f.svc.RetryGatewayPayment(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingGatewayPayment, view.State)
	assert.Equal(t, "order_gw1", view.Gateway.GatewayOrderRef)
	assert.Equal(t, models.FailureNone, view.FailureReason)
	f.orders.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCheckout_GatewayOrderFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)
	f.gateway.err = errors.New("gateway timeout")

	f.orders.On("CreateOrder", mock.Anything, testUser, mock.Anything).
		Return(&OrderReceipt{OrderID: "o-gw", TotalAmount: 316.45}, nil).Once()

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "gateway"})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, models.CheckoutFailed, view.State)
	assert.Equal(t, "o-gw", view.PendingOrderID)

	f.gateway.err = nil
	view, err = f.svc.RetryGatewayPayment(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingGatewayPayment, view.State)
	assert.Equal(t, 2, f.gateway.calls)
}

func TestCheckout_AbandonPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)
	startGateway(t, f)
	_, _ = f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentFailedWith("declined"))

	f.orders.On("CancelOrder", mock.Anything, testUser, "o-gw", "changed my mind").
		Return("Order cancelled successfully", nil).Once()

	view, err := f.svc.AbandonPendingOrder(ctx, testUser, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutIdle, view.State)
	assert.Equal(t, "Order cancelled successfully", view.Message)
	assert.False(t, f.cart().IsEmpty())
	f.orders.AssertExpectations(t)
}

func TestCheckout_MockOnlineFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)
	f.simulator.err = ErrPaymentDeclined

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "online"})
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, models.CheckoutIdle, view.State)
	assert.Equal(t, before, f.cart())
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_MockOnlineSuccessSubmitsPaid(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	f.orders.On("CreateOrder", mock.Anything, testUser, mock.MatchedBy(func(in models.OrderIntent) bool {
		return in.PaymentMethod == models.PaymentMockOnline && in.PaymentStatus == models.PaymentStatusPaid
	})).Return(&OrderReceipt{OrderID: "o-mock", TotalAmount: 316.45}, nil).Once()

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "mock_online"})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, view.State)
	assert.Equal(t, 1, f.simulator.calls)
	assert.True(t, f.cart().IsEmpty())
}

func TestCheckout_DirectUPI(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "upi-direct"})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingUPIConfirmation, view.State)
	require.NotNil(t, view.UPI)
	assert.Equal(t, "upi://pay?pa=7058409290-4%40axl&pn=Swadhan%20Eats&am=316.45&cu=INR&tn=Order%20payment", view.UPI.URI)
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)

	f.orders.On("CreateOrder", mock.Anything, testUser, mock.MatchedBy(func(in models.OrderIntent) bool {
		return in.PaymentMethod == models.PaymentDirectUPI && in.PaymentStatus == models.PaymentStatusPaid
	})).Return(&OrderReceipt{OrderID: "o-upi", TotalAmount: 316.45}, nil).Once()

	view, err = f.svc.ConfirmUPIPayment(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, view.State)
	assert.True(t, f.cart().IsEmpty())
}

// blockingOrderAPI holds CreateOrder until released so a concurrent submit
// can observe the submitting state.
type blockingOrderAPI struct {
	MockOrderAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingOrderAPI) CreateOrder(ctx context.Context, userID string, intent models.OrderIntent) (*OrderReceipt, error) {
	close(b.entered)
	<-b.release
	return &OrderReceipt{OrderID: "o-slow", TotalAmount: 316.45}, nil
}

func TestCheckout_ConcurrentSubmitIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	slow := &blockingOrderAPI{entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.orders = slow

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
		done <- err
	}()

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("order submission never started")
	}

	assert.Equal(t, models.CheckoutSubmitting, f.svc.State(testUser).State)
	_, err = f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	close(slow.release)
	require.NoError(t, <-done)
	assert.Equal(t, models.CheckoutCompleted, f.svc.State(testUser).State)
}

func TestCheckout_ResetKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "upi"})
	require.NoError(t, err)

	view, err := f.svc.Reset(testUser)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutIdle, view.State)
	assert.Equal(t, before, f.cart())
}

func TestGatewayOutcomeRequest(t *testing.T) {
	out, err := GatewayOutcomeRequest{Outcome: models.OutcomeSuccess, PaymentID: "pay_1", Signature: "s"}.ToOutcome()
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded("pay_1", "s"), out)

	_, err = GatewayOutcomeRequest{Outcome: models.OutcomeSuccess}.ToOutcome()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = GatewayOutcomeRequest{Outcome: "maybe"}.ToOutcome()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckout_ConfirmRejectsChangedCart(t *testing.T) {
	for _, method := range []string{"cod", "upi"} {
		t.Run(method, func(t *testing.T) {
			ctx := context.Background()
			f := newCheckoutFixture(t)
			f.fillCart(t)

			view, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: method})
			require.NoError(t, err)
			assert.Equal(t, 316.45, view.TotalAmount)

			_, err = f.carts.Store(ctx, testUser).AddItem(ctx, pizza, "R1")
			require.NoError(t, err)

			if method == "cod" {
				view, err = f.svc.ConfirmCashOnDelivery(ctx, testUser, true)
			} else {
				view, err = f.svc.ConfirmUPIPayment(ctx, testUser)
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, view)
			assert.Equal(t, models.CheckoutIdle, f.svc.State(testUser).State)
			assert.Equal(t, 2, f.carts.Store(ctx, testUser).Quantity(pizza.ID))
			f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCheckout_StartRefusedWhilePendingOrderAwaitsPayment(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)
	startGateway(t, f)
	_, _ = f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentCancelled())

	_, err := f.svc.Start(ctx, testUser, StartCheckoutRequest{PaymentMethod: "gateway"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	view := f.svc.State(testUser)
	assert.Equal(t, models.CheckoutFailed, view.State)
	assert.Equal(t, "o-gw", view.PendingOrderID)
	f.orders.AssertNumberOfCalls(t, "CreateOrder", 1)

	view, err = f.svc.RetryGatewayPayment(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutAwaitingGatewayPayment, view.State)
}

func TestCheckout_EvictIdleSkipsInFlightSessions(t *testing.T) {
	f := newCheckoutFixture(t)

	sess := f.svc.session(testUser)
	sess.mu.Lock()
	sess.state = models.CheckoutSubmitting
	sess.mu.Unlock()

	assert.Zero(t, f.svc.EvictIdle(time.Now().Add(-time.Hour)))
	assert.Zero(t, f.svc.EvictIdle(time.Now().Add(time.Minute)))

	sess.mu.Lock()
	sess.state = models.CheckoutIdle
	sess.mu.Unlock()
	assert.Equal(t, 1, f.svc.EvictIdle(time.Now().Add(time.Minute)))
	assert.NotSame(t, sess, f.svc.session(testUser))
}

func TestCheckout_GatewayPaymentForCancelledOrderKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	before := f.fillCart(t)
	startGateway(t, f)

	f.orders.On("VerifyPayment", mock.Anything, testUser, mock.Anything).
		Return(&VerificationResult{Success: false, Order: &models.Order{OrderStatus: models.OrderStatusCancelled}}, nil).Once()

	view, err := f.svc.ResolveGatewayPayment(ctx, testUser, models.PaymentSucceeded("pay_1", "sig"))
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, models.CheckoutIdle, view.State)
	assert.Empty(t, view.PendingOrderID)
	assert.Contains(t, view.Message, "refunded")
	assert.Equal(t, before, f.cart())
}
