package repositories

import (
	"context"
	"errors"

	"swadhan-eats/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Dish Repository
type dishRepository struct {
	collection *mongo.Collection
}

func NewDishRepository(db *mongo.Database) DishRepository {
	return &dishRepository{
		collection: db.Collection("dishes"),
	}
}

// GetByID accepts the hex form used in cart line items.
func (r *dishRepository) GetByID(ctx context.Context, id string) (*models.Dish, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var dish models.Dish
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&dish)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dish, nil
}

func (r *dishRepository) GetByRestaurantID(ctx context.Context, restaurantID string, limit, offset int) ([]models.Dish, error) {
	var dishes []models.Dish

	filter := bson.M{"restaurant_id": restaurantID, "is_available": true}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &dishes); err != nil {
		return nil, err
	}

	return dishes, nil
}
