package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/delish/storefront/internal/models"
)

// MongoReviewRepository is the MongoDB implementation of ReviewRepository.
type MongoReviewRepository struct {
	reviews *mongo.Collection
}

func NewMongoReviewRepository(database *mongo.Database) *MongoReviewRepository {
	return &MongoReviewRepository{reviews: database.Collection("reviews")}
}

func (r *MongoReviewRepository) Add(ctx context.Context, review *models.Review) error {
	review.Text = strings.TrimSpace(review.Text)
	if review.Text == "" {
		return &models.ValidationError{Field: "text", Message: "your review must have text"}
	}
	if review.Rating < 1 || review.Rating > 5 {
		return &models.ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	review.ID = primitive.NewObjectID()
	review.CreatedAt = time.Now()
	if _, err := r.reviews.InsertOne(ctx, review); err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}
	return nil
}

// ForStore lists a store's reviews newest-first with their authors joined in.
func (r *MongoReviewRepository) ForStore(ctx context.Context, storeID primitive.ObjectID) ([]models.Review, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"store": storeID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "authorUser",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$authorUser", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$sort", Value: bson.M{"created": -1}}},
	}
	cursor, err := r.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("reviews for store: %w", err)
	}
	defer cursor.Close(ctx)
	var reviews []models.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("decoding reviews: %w", err)
	}
	return reviews, nil
}
