package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delish/storefront/internal/middleware"
	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/repository"
)

type stubPhotos struct{}

func (stubPhotos) Save(context.Context, *multipart.FileHeader) (string, error) {
	return "http://localhost:9000/store-photos/test.jpg", nil
}

type testEnv struct {
	app     *fiber.App
	stores  *repository.MockStoreRepository
	users   *repository.MockUserRepository
	reviews *repository.MockReviewRepository
}

// newTestEnv wires the handlers over in-memory repositories. When userID is
// non-empty every request runs logged in as that user.
func newTestEnv(userID string) *testEnv {
	sessions := session.New()
	auth := middleware.NewAuth(sessions, "test-secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})

	stores := repository.NewMockStoreRepository()
	users := repository.NewMockUserRepository()
	reviews := repository.NewMockReviewRepository()
	stores.Reviews = reviews

	base := Base{Sessions: sessions}
	NewStoreHandler(base, stores, reviews, users, stubPhotos{}).RegisterRoutes(app, auth.RequireLogin)
	NewReviewHandler(base, reviews, stores).RegisterRoutes(app, auth.RequireLogin)

	return &testEnv{app: app, stores: stores, users: users, reviews: reviews}
}

func seedStores(t *testing.T, env *testEnv, n int) []models.Store {
	t.Helper()
	out := make([]models.Store, 0, n)
	for i := 1; i <= n; i++ {
		store := &models.Store{
			Name: fmt.Sprintf("Store %d", i),
			Location: models.Location{
				Coordinates: []float64{-79.38, 43.65},
				Address:     "123 Main St",
			},
		}
		require.NoError(t, env.stores.Create(context.Background(), store))
		out = append(out, *store)
	}
	return out
}

func TestGetStoresReturnsPage(t *testing.T) {
	env := newTestEnv("")
	seedStores(t, env, 6)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/stores", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Stores []models.Store `json:"stores"`
		Page   int64          `json:"page"`
		Pages  int64          `json:"pages"`
		Count  int64          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Stores, 4)
	assert.Equal(t, int64(1), body.Page)
	assert.Equal(t, int64(2), body.Pages)
	assert.Equal(t, int64(6), body.Count)
}

func TestGetStoresPageOutOfRangeRedirects(t *testing.T) {
	env := newTestEnv("")
	seedStores(t, env, 6)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/stores/page/99", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/stores/page/2", resp.Header.Get("Location"))
}

func TestGetStoreBySlug(t *testing.T) {
	env := newTestEnv("")
	seeded := seedStores(t, env, 1)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/store/"+seeded[0].Slug, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Title string       `json:"title"`
		Store models.Store `json:"store"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Store 1", body.Title)
	assert.Equal(t, seeded[0].ID, body.Store.ID)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/store/no-such-store", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeartStoreToggles(t *testing.T) {
	env := newTestEnv("")
	user := &models.User{Email: "u@example.com", Name: "U"}
	require.NoError(t, env.users.Create(context.Background(), user))
	seeded := seedStores(t, env, 1)

	env = replaceAppUser(env, user.ID.Hex())
	url := "/api/stores/" + seeded[0].ID.Hex() + "/heart"

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.HasHearted(seeded[0].ID))

	// Toggle again: hearts set returns to its original state.
	resp, err = env.app.Test(httptest.NewRequest(http.MethodPost, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.False(t, got.HasHearted(seeded[0].ID))
}

// replaceAppUser rebuilds the app sharing repositories but logged in as userID.
func replaceAppUser(env *testEnv, userID string) *testEnv {
	sessions := session.New()
	auth := middleware.NewAuth(sessions, "test-secret")
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	base := Base{Sessions: sessions}
	NewStoreHandler(base, env.stores, env.reviews, env.users, stubPhotos{}).RegisterRoutes(app, auth.RequireLogin)
	NewReviewHandler(base, env.reviews, env.stores).RegisterRoutes(app, auth.RequireLogin)
	env.app = app
	return env
}

func TestHeartStoreRequiresLogin(t *testing.T) {
	env := newTestEnv("")
	seeded := seedStores(t, env, 1)

	url := "/api/stores/" + seeded[0].ID.Hex() + "/heart"
	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearchStores(t *testing.T) {
	env := newTestEnv("")
	seedStores(t, env, 2)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/search?q=Store+1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.Store
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotEmpty(t, got)
	assert.Equal(t, "Store 1", got[0].Name)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/search", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMapStoresValidatesCoordinates(t *testing.T) {
	env := newTestEnv("")
	seedStores(t, env, 1)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/stores/near?lng=-79.38&lat=43.65", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/stores/near?lng=abc&lat=43.65", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStoresByTag(t *testing.T) {
	env := newTestEnv("")
	store := &models.Store{
		Name: "Tagged",
		Tags: []string{"Wifi"},
		Location: models.Location{
			Coordinates: []float64{-79.38, 43.65},
			Address:     "123 Main St",
		},
	}
	require.NoError(t, env.stores.Create(context.Background(), store))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/tags/Wifi", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tag    string            `json:"tag"`
		Tags   []models.TagCount `json:"tags"`
		Stores []models.Store    `json:"stores"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Wifi", body.Tag)
	require.Len(t, body.Tags, 1)
	assert.Equal(t, 1, body.Tags[0].Count)
	assert.Len(t, body.Stores, 1)
}

func TestCreateStore(t *testing.T) {
	env := newTestEnv("")
	user := &models.User{Email: "u@example.com", Name: "U"}
	require.NoError(t, env.users.Create(context.Background(), user))
	env = replaceAppUser(env, user.ID.Hex())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Cafe Blue"))
	require.NoError(t, w.WriteField("description", "good coffee"))
	require.NoError(t, w.WriteField("address", "123 Main St"))
	require.NoError(t, w.WriteField("lng", "-79.38"))
	require.NoError(t, w.WriteField("lat", "43.65"))
	require.NoError(t, w.WriteField("tags", "Wifi"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/add", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/store/cafe-blue", resp.Header.Get("Location"))

	store, err := env.stores.BySlug(context.Background(), "cafe-blue")
	require.NoError(t, err)
	assert.Equal(t, user.ID, store.Author)
	assert.Equal(t, []string{"Wifi"}, store.Tags)
	assert.Equal(t, "Point", store.Location.Type)
}

func TestEditStoreRequiresOwnership(t *testing.T) {
	env := newTestEnv("")
	owner := &models.User{Email: "owner@example.com", Name: "Owner"}
	require.NoError(t, env.users.Create(context.Background(), owner))
	intruder := &models.User{Email: "intruder@example.com", Name: "Intruder"}
	require.NoError(t, env.users.Create(context.Background(), intruder))

	store := &models.Store{
		Name:   "Cafe Blue",
		Author: owner.ID,
		Location: models.Location{
			Coordinates: []float64{-79.38, 43.65},
			Address:     "123 Main St",
		},
	}
	require.NoError(t, env.stores.Create(context.Background(), store))

	env = replaceAppUser(env, intruder.ID.Hex())
	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/stores/"+store.ID.Hex()+"/edit", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	env = replaceAppUser(env, owner.ID.Hex())
	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/stores/"+store.ID.Hex()+"/edit", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddReviewRedirectsToStore(t *testing.T) {
	env := newTestEnv("")
	user := &models.User{Email: "u@example.com", Name: "U"}
	require.NoError(t, env.users.Create(context.Background(), user))
	seeded := seedStores(t, env, 1)
	env = replaceAppUser(env, user.ID.Hex())

	form := "rating=4&text=lovely+spot"
	req := httptest.NewRequest(http.MethodPost, "/reviews/"+seeded[0].ID.Hex(), strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/store/"+seeded[0].Slug, resp.Header.Get("Location"))

	reviews, err := env.reviews.ForStore(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, user.ID, reviews[0].Author)
}

func TestTopStoresPage(t *testing.T) {
	env := newTestEnv("")
	stores := seedStores(t, env, 2)
	for _, rating := range []int{5, 4} {
		require.NoError(t, env.reviews.Add(context.Background(), &models.Review{
			Store:  stores[0].ID,
			Rating: rating,
			Text:   "tasty",
		}))
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/top", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Stores []models.TopStore `json:"stores"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Stores, 1, "only stores with two or more reviews rank")
	assert.Equal(t, stores[0].Slug, body.Stores[0].Slug)
	assert.InDelta(t, 4.5, body.Stores[0].AverageRating, 0.001)
}
