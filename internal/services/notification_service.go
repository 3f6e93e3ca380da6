package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"swadhan-eats/pkg/messaging"
)

type SMSSender interface {
	SendOrderUpdate(ctx context.Context, phone, orderRef, status string) error
}

// NotificationService turns notification events into customer texts.
type NotificationService struct {
	sms      SMSSender
	statuses map[string]bool
}

// NewNotificationService texts only for the listed order statuses.
func NewNotificationService(sms SMSSender, statuses ...string) *NotificationService {
	if len(statuses) == 0 {
		statuses = []string{"confirmed"}
	}
	set := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return &NotificationService{sms: sms, statuses: set}
}

// HandleNotification is the consumer callback for the notification topic.
func (s *NotificationService) HandleNotification(ctx context.Context, payload []byte) error {
	var event messaging.NotificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}

	status, _ := event.Metadata["status"].(string)
	if !s.statuses[status] {
		return nil
	}

	phone, _ := event.Metadata["phone"].(string)
	orderID, _ := event.Metadata["order_id"].(string)
	if phone == "" {
		log.Printf("No phone on file for order %s, skipping SMS", orderID)
		return nil
	}

	return s.sms.SendOrderUpdate(ctx, phone, shortRef(orderID), status)
}
