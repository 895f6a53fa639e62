package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m mongoRepository) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	now := time.Now()
	line.AddedAt = now

	filter := bson.M{"user_id": userID}

	var existing domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existing)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Cart doesn't exist, create it with the line
			cart := &domain.Cart{
				UserID:    userID,
				Lines:     []domain.CartLine{line},
				CreatedAt: now,
				UpdatedAt: now,
			}

			_, err = m.collection.InsertOne(ctx, cart)
			if err != nil {
				return fmt.Errorf("failed to create cart with line: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	lineExists := false
	for _, l := range existing.Lines {
		if l.ProductID == line.ProductID {
			lineExists = true
			break
		}
	}

	if lineExists {
		// Same product added again: replace the line
		update := bson.M{
			"$set": bson.M{
				"lines.$[elem].quantity":       line.Quantity,
				"lines.$[elem].payment_method": line.PaymentMethod,
				"lines.$[elem].installments":   line.Installments,
				"lines.$[elem].added_at":       now,
				"updated_at":                   now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": line.ProductID},
			},
		})

		if _, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to update existing line: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"lines": line},
			"$set":  bson.M{"updated_at": now},
		}

		if _, err = m.collection.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to add new line: %w", err)
		}
	}

	return nil
}

func (m mongoRepository) UpdateLine(ctx context.Context, userID string, productID int64, upd LineUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if upd.Quantity != nil {
		set["lines.$[elem].quantity"] = *upd.Quantity
	}
	if upd.PaymentMethod != nil {
		set["lines.$[elem].payment_method"] = *upd.PaymentMethod
	}
	if upd.Installments != nil {
		set["lines.$[elem].installments"] = *upd.Installments
	}

	filter := bson.M{
		"user_id":          userID,
		"lines.product_id": productID,
	}
	update := bson.M{"$set": set}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update line: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m mongoRepository) RemoveLine(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"lines": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

// EnsureIndexes creates the carts collection indexes. Idempotent; run at
// startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
