package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect opens the MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the indexes the repositories rely on: unique email,
// unique slug, the name+description text index and the 2dsphere location index.
// The unique slug index is what makes the create/update slug retry loop safe
// under concurrent identical-name submissions.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := database.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}

	_, err = database.Collection("stores").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
	})
	if err != nil {
		return fmt.Errorf("stores indexes: %w", err)
	}

	_, err = database.Collection("reviews").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "store", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("reviews store index: %w", err)
	}
	return nil
}
