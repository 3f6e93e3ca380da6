package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// DishRef identifies a dish and carries the display fields the cart needs.
type DishRef struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageRef string  `json:"image_ref,omitempty"`
}

// LineItem is one dish in the cart. Quantity is always >= 1.
type LineItem struct {
	Dish     DishRef `json:"dish"`
	Quantity int     `json:"quantity"`
}

// LineItems is stored as a JSON column
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]LineItem{})
	}
	return json.Marshal(l)
}

func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = nil
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

	return json.Unmarshal(data, l)
}

// CartSnapshot is the persisted state of a customer's cart. All items belong
// to RestaurantID; RestaurantID is empty exactly when Items is empty.
type CartSnapshot struct {
	Items        []LineItem `json:"items"`
	RestaurantID string     `json:"restaurant_id,omitempty"`
}

// Clone returns a deep copy safe to hand out of the store.
func (s CartSnapshot) Clone() CartSnapshot {
	if len(s.Items) == 0 {
		return CartSnapshot{RestaurantID: s.RestaurantID}
	}
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	return CartSnapshot{Items: items, RestaurantID: s.RestaurantID}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Equal reports whether both carts hold the same dishes at the same prices
// and quantities, in the same order.
func (s CartSnapshot) Equal(other CartSnapshot) bool {
	if s.RestaurantID != other.RestaurantID || len(s.Items) != len(other.Items) {
		return false
	}
	for i := range s.Items {
		if s.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

// BillSummary is the priced view of a cart shown before checkout.
type BillSummary struct {
	SubTotal    float64 `json:"sub_total"`
	TaxAmount   float64 `json:"tax_amount"`
	DeliveryFee float64 `json:"delivery_fee"`
	TotalAmount float64 `json:"total_amount"`
}
