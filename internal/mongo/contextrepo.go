package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tablevox/tablevox/internal/voice"
)

// ContextRepo stores at most one incomplete command per restaurant. Set is
// an upsert on the restaurant id, so a newer incomplete command always
// replaces the previous one.
type ContextRepo struct {
	collection *mongo.Collection
}

func NewContextRepo(db *mongo.Database) *ContextRepo {
	return &ContextRepo{
		collection: db.Collection("incomplete_commands"),
	}
}

func (r *ContextRepo) Get(ctx context.Context, restaurantID uuid.UUID) (*voice.IncompleteContext, error) {
	var ic voice.IncompleteContext
	err := r.collection.FindOne(ctx, bson.M{"_id": restaurantID}).Decode(&ic)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get incomplete context: %w", err)
	}
	return &ic, nil
}

func (r *ContextRepo) Set(ctx context.Context, ic *voice.IncompleteContext) error {
	if ic == nil {
		return fmt.Errorf("incomplete context is nil")
	}
	if ic.RestaurantID == uuid.Nil {
		return fmt.Errorf("incomplete context requires a restaurant id")
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": ic.RestaurantID}
	if _, err := r.collection.ReplaceOne(ctx, filter, ic, opts); err != nil {
		return fmt.Errorf("cannot store incomplete context: %w", err)
	}

	return nil
}

func (r *ContextRepo) Clear(ctx context.Context, restaurantID uuid.UUID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": restaurantID}); err != nil {
		return fmt.Errorf("cannot clear incomplete context: %w", err)
	}
	return nil
}
