package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/repositories"
)

var (
	ErrCartPersist        = errors.New("failed to persist cart")
	ErrDishNotFound       = errors.New("dish not found")
	ErrDishUnavailable    = errors.New("dish is not available")
	ErrInvalidCartRequest = errors.New("invalid cart request")
)

// CartStore owns one customer's cart. All reads and writes go through it so
// every entry point sees the same snapshot.
type CartStore struct {
	userID string
	repo   repositories.CartSnapshotRepository

	mu       sync.Mutex
	snapshot models.CartSnapshot

	lastUsed time.Time // guarded by CartService.mu
}

func newCartStore(userID string, repo repositories.CartSnapshotRepository) *CartStore {
	return &CartStore{userID: userID, repo: repo}
}

// load replaces the in-memory snapshot with the persisted one. Missing or
// unreadable data starts an empty cart.
func (s *CartStore) load(ctx context.Context) {
	stored, err := s.repo.Load(ctx, s.userID)
	if err != nil {
		log.Printf("Failed to load cart for user %s, starting empty: %v", s.userID, err)
		stored = nil
	}

	var loaded models.CartSnapshot
	if stored != nil {
		loaded = *stored
	}

	s.mu.Lock()
	s.snapshot = reduceCart(s.snapshot, cartAction{kind: cartLoad, loaded: loaded})
	s.mu.Unlock()
}

// dispatch applies the action and persists the result before returning.
// The in-memory state always advances; a save failure is reported to the caller.
func (s *CartStore) dispatch(ctx context.Context, action cartAction) (models.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = reduceCart(s.snapshot, action)
	out := s.snapshot.Clone()

	if err := s.repo.Save(ctx, s.userID, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrCartPersist, err)
	}
	return s.snapshot.Clone(), nil
}

// AddItem adds one unit of dish. A dish from another restaurant replaces the cart.
func (s *CartStore) AddItem(ctx context.Context, dish models.DishRef, restaurantID string) (models.CartSnapshot, error) {
	return s.dispatch(ctx, cartAction{kind: cartAdd, dish: dish, restaurantID: restaurantID})
}

// UpdateQuantity sets the quantity exactly; zero or less removes the dish.
func (s *CartStore) UpdateQuantity(ctx context.Context, dishID string, quantity int) (models.CartSnapshot, error) {
	return s.dispatch(ctx, cartAction{kind: cartUpdate, dishID: dishID, quantity: quantity})
}

func (s *CartStore) RemoveItem(ctx context.Context, dishID string) (models.CartSnapshot, error) {
	return s.dispatch(ctx, cartAction{kind: cartRemove, dishID: dishID})
}

func (s *CartStore) Clear(ctx context.Context) error {
	_, err := s.dispatch(ctx, cartAction{kind: cartClear})
	return err
}

func (s *CartStore) Snapshot() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Total is the item subtotal rounded to two decimals.
func (s *CartStore) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toFloat(lineSubtotal(s.snapshot.Items))
}

func (s *CartStore) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.snapshot.Items {
		count += item.Quantity
	}
	return count
}

func (s *CartStore) Quantity(dishID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.snapshot.Items {
		if item.Dish.ID == dishID {
			return item.Quantity
		}
	}
	return 0
}

func (s *CartStore) BillSummary(rates BillingRates) models.BillSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeBill(lineSubtotal(s.snapshot.Items), rates)
}

// CartService hands out exactly one CartStore per customer, loading it on first use.
type CartService struct {
	repo   repositories.CartSnapshotRepository
	dishes repositories.DishRepository
	rates  BillingRates

	mu     sync.Mutex
	stores map[string]*CartStore
}

// NewCartService accepts a nil dish repository, in which case dish details
// supplied by the client are trusted.
func NewCartService(repo repositories.CartSnapshotRepository, dishes repositories.DishRepository, rates BillingRates) *CartService {
	return &CartService{
		repo:   repo,
		dishes: dishes,
		rates:  rates,
		stores: make(map[string]*CartStore),
	}
}

func (s *CartService) Store(ctx context.Context, userID string) *CartStore {
	s.mu.Lock()
	if store, ok := s.stores[userID]; ok {
		store.lastUsed = time.Now()
		s.mu.Unlock()
		return store
	}
	s.mu.Unlock()

	loaded := newCartStore(userID, s.repo)
	loaded.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have loaded the same customer meanwhile
	if store, ok := s.stores[userID]; ok {
		store.lastUsed = time.Now()
		return store
	}
	loaded.lastUsed = time.Now()
	s.stores[userID] = loaded
	return loaded
}

// EvictIdle drops stores not used since before. Their carts are already
// persisted and are reloaded on next use.
func (s *CartService) EvictIdle(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for userID, store := range s.stores {
		if store.lastUsed.Before(before) {
			delete(s.stores, userID)
			evicted++
		}
	}
	return evicted
}

type AddCartItemRequest struct {
	DishID       string  `json:"dish_id" binding:"required"`
	RestaurantID string  `json:"restaurant_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ImageRef     string  `json:"image_ref"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type CartResponse struct {
	Items          []models.LineItem  `json:"items"`
	RestaurantID   string             `json:"restaurant_id,omitempty"`
	Total          float64            `json:"total"`
	TotalItemCount int                `json:"total_item_count"`
	Bill           models.BillSummary `json:"bill"`
}

func (s *CartService) response(store *CartStore) *CartResponse {
	snapshot := store.Snapshot()
	items := snapshot.Items
	if items == nil {
		items = []models.LineItem{}
	}
	return &CartResponse{
		Items:          items,
		RestaurantID:   snapshot.RestaurantID,
		Total:          store.Total(),
		TotalItemCount: store.TotalItemCount(),
		Bill:           store.BillSummary(s.rates),
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) *CartResponse {
	return s.response(s.Store(ctx, userID))
}

// resolveDish prefers the catalog so prices cannot be set by the client.
func (s *CartService) resolveDish(ctx context.Context, req AddCartItemRequest) (models.DishRef, string, error) {
	if s.dishes != nil {
		dish, err := s.dishes.GetByID(ctx, req.DishID)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.DishRef{}, "", ErrDishNotFound
		}
		if err != nil {
			return models.DishRef{}, "", fmt.Errorf("failed to look up dish: %w", err)
		}
		if !dish.IsAvailable {
			return models.DishRef{}, "", ErrDishUnavailable
		}
		return dish.Ref(), dish.RestaurantID, nil
	}

	if strings.TrimSpace(req.RestaurantID) == "" || strings.TrimSpace(req.Name) == "" || req.Price < 0 {
		return models.DishRef{}, "", fmt.Errorf("%w: restaurant_id, name and a non-negative price are required", ErrInvalidCartRequest)
	}
	return models.DishRef{
		ID:       req.DishID,
		Name:     req.Name,
		Price:    req.Price,
		ImageRef: req.ImageRef,
	}, req.RestaurantID, nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, req AddCartItemRequest) (*CartResponse, error) {
	dish, restaurantID, err := s.resolveDish(ctx, req)
	if err != nil {
		return nil, err
	}

	store := s.Store(ctx, userID)
	if _, err := store.AddItem(ctx, dish, restaurantID); err != nil {
		return s.response(store), err
	}
	return s.response(store), nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, dishID string, quantity int) (*CartResponse, error) {
	store := s.Store(ctx, userID)
	if _, err := store.UpdateQuantity(ctx, dishID, quantity); err != nil {
		return s.response(store), err
	}
	return s.response(store), nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, dishID string) (*CartResponse, error) {
	store := s.Store(ctx, userID)
	if _, err := store.RemoveItem(ctx, dishID); err != nil {
		return s.response(store), err
	}
	return s.response(store), nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) (*CartResponse, error) {
	store := s.Store(ctx, userID)
	if err := store.Clear(ctx); err != nil {
		return s.response(store), err
	}
	return s.response(store), nil
}

func (s *CartService) BillSummary(ctx context.Context, userID string) models.BillSummary {
	return s.Store(ctx, userID).BillSummary(s.rates)
}

func (s *CartService) Rates() BillingRates {
	return s.rates
}
