package services

import (
	"context"
	"encoding/json"
	"testing"

	"swadhan-eats/pkg/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendOrderUpdate(ctx context.Context, phone, orderRef, status string) error {
	args := m.Called(ctx, phone, orderRef, status)
	return args.Error(0)
}

func notificationPayload(t *testing.T, status, phone string) []byte {
	t.Helper()
	data, err := json.Marshal(messaging.NotificationEvent{
		Type:  "order_status_update",
		Title: "Order Update",
		Metadata: map[string]interface{}{
			"order_id": "3f2b8c1d-0000-4000-8000-000000000001",
			"status":   status,
			"phone":    phone,
		},
	})
	require.NoError(t, err)
	return data
}

func TestNotificationService_TextsConfirmedOrders(t *testing.T) {
	sms := new(MockSMSSender)
	sms.On("SendOrderUpdate", mock.Anything, "9876543210", "3f2b8c1d", "confirmed").Return(nil).Once()

	svc := NewNotificationService(sms)
	require.NoError(t, svc.HandleNotification(context.Background(), notificationPayload(t, "confirmed", "9876543210")))
	require.NoError(t, svc.HandleNotification(context.Background(), notificationPayload(t, "preparing", "9876543210")))
	require.NoError(t, svc.HandleNotification(context.Background(), notificationPayload(t, "confirmed", "")))

	sms.AssertExpectations(t)
}

func TestNotificationService_CustomStatuses(t *testing.T) {
	sms := new(MockSMSSender)
	sms.On("SendOrderUpdate", mock.Anything, "9876543210", "3f2b8c1d", "dispatched").Return(nil).Once()

	svc := NewNotificationService(sms, "dispatched")
	require.NoError(t, svc.HandleNotification(context.Background(), notificationPayload(t, "confirmed", "9876543210")))
	require.NoError(t, svc.HandleNotification(context.Background(), notificationPayload(t, "dispatched", "9876543210")))

	sms.AssertExpectations(t)
}

func TestNotificationService_BadPayload(t *testing.T) {
	svc := NewNotificationService(new(MockSMSSender))
	assert.Error(t, svc.HandleNotification(context.Background(), []byte("{")))
}
