package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delish/storefront/internal/models"
)

func newStore(name string) *models.Store {
	return &models.Store{
		Name: name,
		Location: models.Location{
			Coordinates: []float64{-79.38, 43.65},
			Address:     "123 Main St",
		},
	}
}

func TestCreateDeduplicatesSlugs(t *testing.T) {
	repo := NewMockStoreRepository()
	ctx := context.Background()

	first := newStore("Cafe Blue")
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, "cafe-blue", first.Slug)

	second := newStore("Cafe Blue")
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, "cafe-blue-2", second.Slug)

	third := newStore("Cafe Blue")
	require.NoError(t, repo.Create(ctx, third))
	assert.Equal(t, "cafe-blue-3", third.Slug)

	// A name that merely shares the prefix must not collide.
	other := newStore("Cafe Bluebird")
	require.NoError(t, repo.Create(ctx, other))
	assert.Equal(t, "cafe-bluebird", other.Slug)
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	repo := NewMockStoreRepository()
	ctx := context.Background()

	var validationErr *models.ValidationError

	noName := newStore("   ")
	err := repo.Create(ctx, noName)
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "name", validationErr.Field)

	noAddress := newStore("Cafe Blue")
	noAddress.Location.Address = ""
	err = repo.Create(ctx, noAddress)
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "location.address", validationErr.Field)

	noCoords := newStore("Cafe Blue")
	noCoords.Location.Coordinates = nil
	err = repo.Create(ctx, noCoords)
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "location.coordinates", validationErr.Field)
}

func TestUpdateReslugsOnlyWhenNameChanges(t *testing.T) {
	repo := NewMockStoreRepository()
	ctx := context.Background()

	store := newStore("Cafe Blue")
	require.NoError(t, repo.Create(ctx, store))

	// Same name: slug stays put, no self-collision suffix.
	changes := newStore("Cafe Blue")
	changes.Description = "now with pastries"
	updated, err := repo.Update(ctx, store.ID, changes)
	require.NoError(t, err)
	assert.Equal(t, "cafe-blue", updated.Slug)
	assert.Equal(t, "now with pastries", updated.Description)

	// New name: slug recomputed.
	renamed := newStore("Cafe Rouge")
	updated, err = repo.Update(ctx, store.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, "cafe-rouge", updated.Slug)
}

func TestListPagination(t *testing.T) {
	repo := NewMockStoreRepository()
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		store := newStore(fmt.Sprintf("Store %d", i))
		require.NoError(t, repo.Create(ctx, store))
		time.Sleep(time.Millisecond)
	}

	page, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, page.Stores, 4)
	assert.Equal(t, int64(6), page.Count)
	assert.Equal(t, int64(2), page.Pages)
	// Newest first.
	assert.Equal(t, "Store 6", page.Stores[0].Name)

	page, err = repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, page.Stores, 2)

	_, err = repo.List(ctx, 99)
	var pageErr *models.PageOutOfRangeError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, int64(99), pageErr.Requested)
	assert.Equal(t, int64(2), pageErr.LastPage)
}

func TestTagCountsSortedDescending(t *testing.T) {
	repo := NewMockStoreRepository()
	ctx := context.Background()

	tagged := func(name string, tags ...string) {
		store := newStore(name)
		store.Tags = tags
		require.NoError(t, repo.Create(ctx, store))
	}
	tagged("A", "Wifi", "Open Late")
	tagged("B", "Wifi")
	tagged("C", "Wifi", "Vegetarian")
	tagged("D")

	counts, err := repo.TagCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, models.TagCount{Tag: "Wifi", Count: 3}, counts[0])

	withTag, err := repo.ByTag(ctx, "Wifi")
	require.NoError(t, err)
	assert.Len(t, withTag, 3)

	anyTag, err := repo.ByTag(ctx, "")
	require.NoError(t, err)
	assert.Len(t, anyTag, 3) // D has no tags at all
}

func TestToggleHeart(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	user := &models.User{Email: "u@example.com", Name: "U"}
	require.NoError(t, repo.Create(ctx, user))
	store := newStore("Cafe Blue")
	storeRepo := NewMockStoreRepository()
	require.NoError(t, storeRepo.Create(ctx, store))

	// First toggle adds.
	updated, err := repo.ToggleHeart(ctx, user.ID, store.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasHearted(store.ID))
	assert.Len(t, updated.Hearts, 1)

	// Second toggle removes: back to the original state.
	updated, err = repo.ToggleHeart(ctx, user.ID, store.ID)
	require.NoError(t, err)
	assert.False(t, updated.HasHearted(store.ID))
	assert.Empty(t, updated.Hearts)
}

func TestResetTokenLifecycle(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	user := &models.User{Email: "u@example.com", Name: "U", Password: "old-hash"}
	require.NoError(t, repo.Create(ctx, user))

	_, err := repo.SetResetToken(ctx, "u@example.com", "tok123", time.Now().Add(time.Hour))
	require.NoError(t, err)

	found, err := repo.ByResetToken(ctx, "tok123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	// Wrong token.
	_, err = repo.ByResetToken(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	// Reset consumes the token.
	updated, err := repo.ResetPassword(ctx, "tok123", "new-hash")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.Password)
	assert.Empty(t, updated.ResetPasswordToken)

	// Second use fails.
	_, err = repo.ResetPassword(ctx, "tok123", "another-hash")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestResetTokenExpiry(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	user := &models.User{Email: "u@example.com", Name: "U"}
	require.NoError(t, repo.Create(ctx, user))

	_, err := repo.SetResetToken(ctx, "u@example.com", "tok123", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = repo.ByResetToken(ctx, "tok123")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = repo.ResetPassword(ctx, "tok123", "new-hash")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestDuplicateEmail(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "U@Example.com", Name: "U"}))

	err := repo.Create(ctx, &models.User{Email: "u@example.com ", Name: "V"})
	assert.True(t, errors.Is(err, models.ErrDuplicateEmail))
}

func TestTopRatedRanking(t *testing.T) {
	stores := NewMockStoreRepository()
	reviews := NewMockReviewRepository()
	stores.Reviews = reviews
	ctx := context.Background()

	addReviews := func(store *models.Store, ratings ...int) {
		for _, rating := range ratings {
			require.NoError(t, reviews.Add(ctx, &models.Review{
				Store:  store.ID,
				Rating: rating,
				Text:   "tasty",
			}))
		}
	}

	lonely := newStore("One Review Wonder")
	require.NoError(t, stores.Create(ctx, lonely))
	addReviews(lonely, 5)

	decent := newStore("Decent Diner")
	require.NoError(t, stores.Create(ctx, decent))
	addReviews(decent, 3, 4)

	great := newStore("Great Grill")
	require.NoError(t, stores.Create(ctx, great))
	addReviews(great, 5, 4, 5)

	top, err := stores.TopRated(ctx)
	require.NoError(t, err)
	require.Len(t, top, 2, "stores with fewer than two reviews are excluded")
	assert.Equal(t, "Great Grill", top[0].Name)
	assert.InDelta(t, 14.0/3.0, top[0].AverageRating, 0.001)
	assert.Equal(t, "Decent Diner", top[1].Name)
	assert.InDelta(t, 3.5, top[1].AverageRating, 0.001)
}
