package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockPaymentService simulates an online charge for environments without a
// live gateway: it waits for delay, then succeeds with probability successRate.
type MockPaymentService struct {
	delay       time.Duration
	successRate float64

	mu   sync.Mutex
	rand *rand.Rand
}

func NewMockPaymentService(delay time.Duration, successRate float64, seed int64) *MockPaymentService {
	return &MockPaymentService{
		delay:       delay,
		successRate: successRate,
		rand:        rand.New(rand.NewSource(seed)),
	}
}

// Charge returns a synthetic transaction reference, or ErrPaymentDeclined.
func (m *MockPaymentService) Charge(ctx context.Context, amount float64) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	roll := m.rand.Float64()
	m.mu.Unlock()

	if roll >= m.successRate {
		return "", ErrPaymentDeclined
	}
	return "mock_" + uuid.NewString()[:12], nil
}
