package handlers

import (
	"context"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/services"
)

// CartServiceInterface defines the contract for cart service
type CartServiceInterface interface {
	GetCart(ctx context.Context, userID string) *services.CartResponse
	AddItem(ctx context.Context, userID string, req services.AddCartItemRequest) (*services.CartResponse, error)
	UpdateQuantity(ctx context.Context, userID, dishID string, quantity int) (*services.CartResponse, error)
	RemoveItem(ctx context.Context, userID, dishID string) (*services.CartResponse, error)
	ClearCart(ctx context.Context, userID string) (*services.CartResponse, error)
	BillSummary(ctx context.Context, userID string) models.BillSummary
}
