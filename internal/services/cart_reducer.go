package services

import "swadhan-eats/internal/models"

type cartActionKind int

const (
	cartLoad cartActionKind = iota
	cartAdd
	cartUpdate
	cartRemove
	cartClear
)

type cartAction struct {
	kind         cartActionKind
	loaded       models.CartSnapshot
	dish         models.DishRef
	restaurantID string
	dishID       string
	quantity     int
}

// reduceCart never mutates its input. Every action is accepted; actions that
// do not apply (unknown dish) return the snapshot unchanged.
func reduceCart(s models.CartSnapshot, a cartAction) models.CartSnapshot {
	switch a.kind {
	case cartLoad:
		return normalizeCart(a.loaded.Clone())

	case cartAdd:
		next := s.Clone()
		if next.RestaurantID != a.restaurantID && len(next.Items) > 0 {
			next = models.CartSnapshot{}
		}
		next.RestaurantID = a.restaurantID
		for i := range next.Items {
			if next.Items[i].Dish.ID == a.dish.ID {
				next.Items[i].Quantity++
				return next
			}
		}
		next.Items = append(next.Items, models.LineItem{Dish: a.dish, Quantity: 1})
		return next

	case cartUpdate:
		if a.quantity <= 0 {
			return reduceCart(s, cartAction{kind: cartRemove, dishID: a.dishID})
		}
		next := s.Clone()
		for i := range next.Items {
			if next.Items[i].Dish.ID == a.dishID {
				next.Items[i].Quantity = a.quantity
				break
			}
		}
		return normalizeCart(next)

	case cartRemove:
		next := models.CartSnapshot{RestaurantID: s.RestaurantID}
		for _, item := range s.Items {
			if item.Dish.ID != a.dishID {
				next.Items = append(next.Items, item)
			}
		}
		return normalizeCart(next)

	case cartClear:
		return models.CartSnapshot{}
	}

	return s
}

// normalizeCart keeps the empty cart canonical: no items, no restaurant.
func normalizeCart(s models.CartSnapshot) models.CartSnapshot {
	var items []models.LineItem
	for _, item := range s.Items {
		if item.Quantity > 0 {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return models.CartSnapshot{}
	}
	s.Items = items
	return s
}
