package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/delish/storefront/internal/models"
)

// MongoUserRepository is the MongoDB implementation of UserRepository.
type MongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: database.Collection("users")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user. The unique email index turns a duplicate
// registration into ErrDuplicateEmail.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.Email = normalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	user.CreatedAt = time.Now()
	if user.Hearts == nil {
		user.Hearts = []primitive.ObjectID{}
	}
	_, err := r.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) ByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &user, nil
}

// SetResetToken stores a reset token and its expiry on the user with that email.
func (r *MongoUserRepository) SetResetToken(ctx context.Context, email, token string, expires time.Time) (*models.User, error) {
	var user models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"email": normalizeEmail(email)},
		bson.M{"$set": bson.M{
			"resetPasswordToken":   token,
			"resetPasswordExpires": expires,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("setting reset token: %w", err)
	}
	return &user, nil
}

// ByResetToken finds the user holding an unexpired reset token.
func (r *MongoUserRepository) ByResetToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, bson.M{
		"resetPasswordToken":   token,
		"resetPasswordExpires": bson.M{"$gt": time.Now()},
	}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by reset token: %w", err)
	}
	return &user, nil
}

// ResetPassword swaps in the new password hash and clears the token in one
// document-atomic update. The filter re-checks expiry, so a token that sat on
// the reset form past its window fails here, and a second use of the same
// token matches nothing.
func (r *MongoUserRepository) ResetPassword(ctx context.Context, token, passwordHash string) (*models.User, error) {
	var user models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{
			"resetPasswordToken":   token,
			"resetPasswordExpires": bson.M{"$gt": time.Now()},
		},
		bson.M{
			"$set":   bson.M{"password": passwordHash},
			"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("resetting password: %w", err)
	}
	return &user, nil
}

// ToggleHeart removes the store from the user's hearts if present, adds it
// otherwise. $addToSet keeps the set free of duplicates either way.
func (r *MongoUserRepository) ToggleHeart(ctx context.Context, userID, storeID primitive.ObjectID) (*models.User, error) {
	user, err := r.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	operator := "$addToSet"
	if user.HasHearted(storeID) {
		operator = "$pull"
	}

	var updated models.User
	err = r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{operator: bson.M{"hearts": storeID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggling heart: %w", err)
	}
	return &updated, nil
}

// UpdateProfile sets name and email, re-running the same normalization as
// registration. A clash with another account's email maps to ErrDuplicateEmail.
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, userID primitive.ObjectID, name, email string) (*models.User, error) {
	var updated models.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"name":  strings.TrimSpace(name),
			"email": normalizeEmail(email),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrDuplicateEmail
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return &updated, nil
}
