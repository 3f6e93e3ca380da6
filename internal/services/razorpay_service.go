package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/repositories"

	"github.com/google/uuid"
)

type RazorpayService struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	currency      string
	offline       bool
	client        *http.Client
	paymentRepo   repositories.PaymentRepository
	orderRepo     repositories.OrderRepository
}

type RazorpayOptions struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	// Offline mints order refs locally instead of calling the REST API.
	Offline bool
}

func NewRazorpayService(opts RazorpayOptions, paymentRepo repositories.PaymentRepository, orderRepo repositories.OrderRepository) *RazorpayService {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.razorpay.com/v1"
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &RazorpayService{
		keyID:         opts.KeyID,
		keySecret:     opts.KeySecret,
		webhookSecret: opts.WebhookSecret,
		baseURL:       opts.BaseURL,
		currency:      opts.Currency,
		offline:       opts.Offline,
		client:        &http.Client{Timeout: 15 * time.Second},
		paymentRepo:   paymentRepo,
		orderRepo:     orderRepo,
	}
}

type RazorpayOrderRequest struct {
	Amount   int64                  `json:"amount"`   // Amount in paise
	Currency string                 `json:"currency"` // INR
	Receipt  string                 `json:"receipt"`
	Notes    map[string]interface{} `json:"notes,omitempty"`
}

type RazorpayOrderResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type RazorpayWebhookPayload struct {
	Entity    string                 `json:"entity"`
	Account   string                 `json:"account_id"`
	Event     string                 `json:"event"`
	Contains  []string               `json:"contains"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt int64                  `json:"created_at"`
}

// GatewayOrder is the gateway side of a pending local order.
type GatewayOrder struct {
	GatewayOrderRef string `json:"gateway_order_ref"`
	AmountPaise     int64  `json:"amount"`
	Currency        string `json:"currency"`
}

func (s *RazorpayService) KeyID() string {
	return s.keyID
}

// CreateGatewayOrder opens a gateway order for an already stored local order
// and records the gateway reference on the order and its payment.
func (s *RazorpayService) CreateGatewayOrder(ctx context.Context, orderID string, amount float64) (*GatewayOrder, error) {
	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order ID: %w", err)
	}

	order, err := s.orderRepo.GetByID(ctx, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	req := &RazorpayOrderRequest{
		Amount:   toPaise(amount),
		Currency: s.currency,
		Receipt:  orderID,
		Notes: map[string]interface{}{
			"order_id": orderID,
		},
	}

	resp, err := s.createOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	order.GatewayOrderRef = resp.ID
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order with gateway ref: %w", err)
	}

	payment, err := s.paymentRepo.GetByOrderID(ctx, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	payment.TransactionID = resp.ID
	if payment.Metadata == nil {
		payment.Metadata = models.JSONB{}
	}
	payment.Metadata["razorpay_order_id"] = resp.ID
	payment.Metadata["currency"] = resp.Currency
	payment.Metadata["amount_paise"] = resp.Amount
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to update payment record: %w", err)
	}

	return &GatewayOrder{
		GatewayOrderRef: resp.ID,
		AmountPaise:     resp.Amount,
		Currency:        resp.Currency,
	}, nil
}

func (s *RazorpayService) createOrder(ctx context.Context, req *RazorpayOrderRequest) (*RazorpayOrderResponse, error) {
	if s.offline {
		return &RazorpayOrderResponse{
			ID:        fmt.Sprintf("order_%s", uuid.New().String()[:8]),
			Entity:    "order",
			Amount:    req.Amount,
			Currency:  req.Currency,
			Receipt:   req.Receipt,
			Status:    "created",
			CreatedAt: time.Now().Unix(),
		}, nil
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/orders", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(s.keyID, s.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read razorpay response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("razorpay returned %d: %s", httpResp.StatusCode, string(body))
	}

	var resp RazorpayOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse razorpay response: %w", err)
	}
	return &resp, nil
}

// VerifyPaymentSignature checks the signature the checkout widget returns,
// HMAC-SHA256 of "order_ref|payment_ref" keyed with the API secret.
func (s *RazorpayService) VerifyPaymentSignature(gatewayOrderRef, gatewayPaymentRef, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(s.PaymentSignature(gatewayOrderRef, gatewayPaymentRef)))
}

func (s *RazorpayService) PaymentSignature(gatewayOrderRef, gatewayPaymentRef string) string {
	return sign(s.keySecret, []byte(gatewayOrderRef+"|"+gatewayPaymentRef))
}

func (s *RazorpayService) VerifyWebhookSignature(payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(sign(s.webhookSecret, payload)))
}

func sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
