package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dish model - MongoDB (flexible catalog data)
type Dish struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RestaurantID  string             `bson:"restaurant_id" json:"restaurant_id"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice *float64           `bson:"discount_price,omitempty" json:"discount_price"`
	ImageUrls     []string           `bson:"image_urls" json:"image_urls"`
	IsAvailable   bool               `bson:"is_available" json:"is_available"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// CurrentPrice is the discounted price when one is set
func (d *Dish) CurrentPrice() float64 {
	if d.DiscountPrice != nil && *d.DiscountPrice > 0 {
		return *d.DiscountPrice
	}
	return d.Price
}

// Ref is the cart view of the dish.
func (d *Dish) Ref() DishRef {
	ref := DishRef{
		ID:    d.ID.Hex(),
		Name:  d.Name,
		Price: d.CurrentPrice(),
	}
	if len(d.ImageUrls) > 0 {
		ref.ImageRef = d.ImageUrls[0]
	}
	return ref
}
