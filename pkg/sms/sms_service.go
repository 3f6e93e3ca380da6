package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "http://app.mydreamstechnology.in/vb/apikey.php"

type SMSService struct {
	apiKey   string
	senderID string
	baseURL  string
	client   *http.Client
}

func NewSMSService(apiKey, senderID, baseURL string) *SMSService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &SMSService{
		apiKey:   apiKey,
		senderID: senderID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendOrderUpdate texts the customer about their order.
func (s *SMSService) SendOrderUpdate(ctx context.Context, phone, orderRef, status string) error {
	message := fmt.Sprintf("Swadhan Eats: your order #%s is %s.", orderRef, status)
	return s.SendCustomMessage(ctx, phone, message)
}

func (s *SMSService) SendCustomMessage(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("missing phone number")
	}

	params := url.Values{}
	params.Add("apikey", s.apiKey)
	params.Add("senderid", s.senderID)
	params.Add("number", phone)
	params.Add("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}

	responseText := strings.ToLower(string(body))
	if resp.StatusCode != http.StatusOK || strings.Contains(responseText, "error") {
		return fmt.Errorf("SMS sending failed: %s", string(body))
	}

	return nil
}
