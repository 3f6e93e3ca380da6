package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(data, j)
}

// User model - PostgreSQL
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone          string    `json:"phone"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	DefaultAddress string    `json:"default_address"`
	City           string    `json:"city"`
	Role           string    `gorm:"default:customer" json:"role"`   // customer, restaurant_staff, courier, admin
	RestaurantID   string    `json:"restaurant_id,omitempty"`        // set for restaurant_staff
	Status         string    `gorm:"default:active" json:"status"`   // active, inactive, suspended
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Cart model - PostgreSQL, one row per customer holding the persisted snapshot
type Cart struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string    `gorm:"uniqueIndex;not null" json:"user_id"`
	RestaurantID string    `json:"restaurant_id"`
	Items        LineItems `gorm:"type:jsonb" json:"items"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Order model - PostgreSQL (critical transactional data)
type Order struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	RestaurantID    string        `gorm:"not null;index" json:"restaurant_id"`
	Items           []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	DeliveryAddress string        `gorm:"not null" json:"delivery_address"`
	DeliveryCity    string        `json:"delivery_city"`
	PaymentMethod   PaymentMethod `gorm:"not null" json:"payment_method"`
	PaymentStatus   PaymentStatus `gorm:"default:pending" json:"payment_status"`
	OrderStatus     OrderStatus   `gorm:"default:pending" json:"order_status"`
	SubTotal        float64       `json:"sub_total"`
	TaxAmount       float64       `json:"tax_amount"`
	DeliveryFee     float64       `json:"delivery_fee"`
	TotalAmount     float64       `json:"total_amount"`
	GatewayOrderRef string        `gorm:"index" json:"gateway_order_ref,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CustomerName    string        `json:"customer_name"`
	CustomerContact string        `json:"customer_contact"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a dish line frozen at the price charged
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	DishID    string    `gorm:"not null" json:"dish_id"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Payment model - PostgreSQL (critical financial data)
type Payment struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID           uuid.UUID     `gorm:"type:uuid;not null;index" json:"order_id"`
	UserID            uuid.UUID     `gorm:"type:uuid;not null" json:"user_id"`
	Amount            float64       `gorm:"not null" json:"amount"`
	Method            PaymentMethod `gorm:"not null" json:"method"`
	Status            PaymentStatus `gorm:"default:pending" json:"status"`
	TransactionID     string        `gorm:"index" json:"transaction_id"` // gateway order ref or mock txn ref
	GatewayPaymentRef string        `json:"gateway_payment_ref,omitempty"`
	Metadata          JSONB         `gorm:"type:jsonb" json:"metadata"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
