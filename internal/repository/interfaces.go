package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/delish/storefront/internal/models"
)

// StoreRepository persists stores and runs the listing/search aggregations.
type StoreRepository interface {
	Create(ctx context.Context, store *models.Store) error
	Update(ctx context.Context, id primitive.ObjectID, changes *models.Store) (*models.Store, error)
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Store, error)
	ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Store, error)
	BySlug(ctx context.Context, slug string) (*models.Store, error)
	List(ctx context.Context, page int64) (*models.StorePage, error)
	ByTag(ctx context.Context, tag string) ([]models.Store, error)
	TagCounts(ctx context.Context) ([]models.TagCount, error)
	Search(ctx context.Context, query string) ([]models.Store, error)
	Near(ctx context.Context, lng, lat float64) ([]models.Store, error)
	TopRated(ctx context.Context) ([]models.TopStore, error)
}

// UserRepository persists users, their reset-token lifecycle and hearts set.
// Credential hashing and verification live in the auth service, not here.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	SetResetToken(ctx context.Context, email, token string, expires time.Time) (*models.User, error)
	ByResetToken(ctx context.Context, token string) (*models.User, error)
	ResetPassword(ctx context.Context, token, passwordHash string) (*models.User, error)
	ToggleHeart(ctx context.Context, userID, storeID primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, name, email string) (*models.User, error)
}

// ReviewRepository persists reviews. A user may review the same store more
// than once; there is deliberately no uniqueness constraint.
type ReviewRepository interface {
	Add(ctx context.Context, review *models.Review) error
	ForStore(ctx context.Context, storeID primitive.ObjectID) ([]models.Review, error)
}
