package repositories

import (
	"context"
	"errors"
	"time"

	"swadhan-eats/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned by every repository when the record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository interface for PostgreSQL user operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// OrderRepository interface for PostgreSQL order operations
type OrderRepository interface {
	// Create stores the order together with its items.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByGatewayOrderRef(ctx context.Context, ref string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	GetByRestaurantID(ctx context.Context, restaurantID string, limit, offset int) ([]models.Order, error)
	// GetStaleGatewayOrders lists unpaid gateway orders created before the cutoff.
	GetStaleGatewayOrders(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
}

// PaymentRepository interface for PostgreSQL payment operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

// CartSnapshotRepository persists one cart snapshot per customer.
// Load returns (nil, nil) when nothing has been saved yet.
type CartSnapshotRepository interface {
	Load(ctx context.Context, userID string) (*models.CartSnapshot, error)
	Save(ctx context.Context, userID string, snapshot *models.CartSnapshot) error
}

// DishRepository interface for the MongoDB dish catalog
type DishRepository interface {
	GetByID(ctx context.Context, id string) (*models.Dish, error)
	GetByRestaurantID(ctx context.Context, restaurantID string, limit, offset int) ([]models.Dish, error)
}
