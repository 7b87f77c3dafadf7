package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/repository"
)

// PhotoSaver persists an uploaded photo and returns its URL.
type PhotoSaver interface {
	Save(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)
}

type StoreHandler struct {
	Base
	stores  repository.StoreRepository
	reviews repository.ReviewRepository
	users   repository.UserRepository
	photos  PhotoSaver
}

func NewStoreHandler(base Base, stores repository.StoreRepository, reviews repository.ReviewRepository, users repository.UserRepository, photos PhotoSaver) *StoreHandler {
	return &StoreHandler{Base: base, stores: stores, reviews: reviews, users: users, photos: photos}
}

func (h *StoreHandler) RegisterRoutes(app *fiber.App, requireLogin fiber.Handler) {
	app.Get("/", h.GetStores)
	app.Get("/stores", h.GetStores)
	app.Get("/stores/page/:page", h.GetStores)
	app.Get("/add", requireLogin, h.AddStoreForm)
	app.Post("/add", requireLogin, h.CreateStore)
	app.Get("/stores/:id/edit", requireLogin, h.EditStoreForm)
	app.Post("/add/:storeIdToEdit", requireLogin, h.UpdateStore)
	app.Get("/store/:slug", h.GetStoreBySlug)
	app.Get("/tags", h.GetStoresByTag)
	app.Get("/tags/:tag", h.GetStoresByTag)
	app.Get("/map", h.MapPage)
	app.Get("/hearts", requireLogin, h.GetHearts)
	app.Get("/top", h.GetTopStores)
	app.Get("/api/search", h.SearchStores)
	app.Get("/api/stores/near", h.MapStores)
	app.Post("/api/stores/:id/heart", requireLogin, h.HeartStore)
}

// GetStores renders one page of the store listing. A page past the end
// redirects to the last page with an explanation.
func (h *StoreHandler) GetStores(c *fiber.Ctx) error {
	page := int64(1)
	if raw := c.Params("page"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			return h.flashAndRedirect(c, "error", "That isn't a valid page.", "/stores")
		}
		page = parsed
	}

	result, err := h.stores.List(c.Context(), page)
	var pageErr *models.PageOutOfRangeError
	if errors.As(err, &pageErr) {
		msg := fmt.Sprintf("You asked for page %d, but that doesn't exist, so here is page %d.", pageErr.Requested, pageErr.LastPage)
		return h.flashAndRedirect(c, "info", msg, fmt.Sprintf("/stores/page/%d", pageErr.LastPage))
	}
	if err != nil {
		return err
	}
	return h.render(c, "Stores", fiber.Map{
		"stores": result.Stores,
		"page":   result.Page,
		"pages":  result.Pages,
		"count":  result.Count,
	})
}

func (h *StoreHandler) AddStoreForm(c *fiber.Ctx) error {
	return h.render(c, "Add Store", fiber.Map{})
}

// storeFromForm reads the multipart store form shared by create and edit.
func storeFromForm(c *fiber.Ctx) (*models.Store, error) {
	lng, lngErr := strconv.ParseFloat(c.FormValue("lng"), 64)
	lat, latErr := strconv.ParseFloat(c.FormValue("lat"), 64)
	if lngErr != nil || latErr != nil {
		return nil, &models.ValidationError{Field: "location.coordinates", Message: "you must supply coordinates"}
	}

	store := &models.Store{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Location: models.Location{
			Type:        "Point",
			Coordinates: []float64{lng, lat},
			Address:     c.FormValue("address"),
		},
	}
	if form, err := c.MultipartForm(); err == nil {
		store.Tags = form.Value["tags"]
	}
	return store, nil
}

// savePhoto stores the optional upload, if any. Creation aborts on a rejected
// or failed upload so no store is left pointing at a missing photo.
func (h *StoreHandler) savePhoto(c *fiber.Ctx) (string, error) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return "", nil // no photo attached
	}
	return h.photos.Save(c.Context(), fileHeader)
}

func (h *StoreHandler) CreateStore(c *fiber.Ctx) error {
	authorID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}

	store, err := storeFromForm(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", userMessage(err), "/add")
	}
	store.Author = authorID

	photo, err := h.savePhoto(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", userMessage(err), "/add")
	}
	store.Photo = photo

	if err := h.stores.Create(c.Context(), store); err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return h.flashAndRedirect(c, "error", validationErr.Message, "/add")
		}
		return err
	}
	msg := fmt.Sprintf("Successfully created %s. Care to leave a review?", store.Name)
	return h.flashAndRedirect(c, "success", msg, "/store/"+store.Slug)
}

// confirmOwner enforces that only a store's author may edit it.
func confirmOwner(store *models.Store, userID primitive.ObjectID) error {
	if store.Author != userID {
		return models.ErrAuthorization
	}
	return nil
}

func (h *StoreHandler) EditStoreForm(c *fiber.Ctx) error {
	storeID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return h.flashAndRedirect(c, "error", "That store doesn't exist.", "/stores")
	}
	store, err := h.stores.ByID(c.Context(), storeID)
	if errors.Is(err, models.ErrNotFound) {
		return h.flashAndRedirect(c, "error", "That store doesn't exist.", "/stores")
	}
	if err != nil {
		return err
	}

	userID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}
	if err := confirmOwner(store, userID); err != nil {
		return h.flashAndRedirect(c, "error", "You must own a store in order to edit it!", "/")
	}
	return h.render(c, "Edit "+store.Name, fiber.Map{"store": store})
}

func (h *StoreHandler) UpdateStore(c *fiber.Ctx) error {
	storeID, err := primitive.ObjectIDFromHex(c.Params("storeIdToEdit"))
	if err != nil {
		return h.flashAndRedirect(c, "error", "That store doesn't exist.", "/stores")
	}
	existing, err := h.stores.ByID(c.Context(), storeID)
	if errors.Is(err, models.ErrNotFound) {
		return h.flashAndRedirect(c, "error", "That store doesn't exist.", "/stores")
	}
	if err != nil {
		return err
	}

	userID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}
	if err := confirmOwner(existing, userID); err != nil {
		return h.flashAndRedirect(c, "error", "You must own a store in order to edit it!", "/")
	}

	changes, err := storeFromForm(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", userMessage(err), fmt.Sprintf("/stores/%s/edit", storeID.Hex()))
	}
	photo, err := h.savePhoto(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", userMessage(err), fmt.Sprintf("/stores/%s/edit", storeID.Hex()))
	}
	changes.Photo = photo

	updated, err := h.stores.Update(c.Context(), storeID, changes)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return h.flashAndRedirect(c, "error", validationErr.Message, fmt.Sprintf("/stores/%s/edit", storeID.Hex()))
		}
		return err
	}
	msg := fmt.Sprintf("Successfully updated %s.", updated.Name)
	return h.flashAndRedirect(c, "success", msg, fmt.Sprintf("/stores/%s/edit", updated.ID.Hex()))
}

func (h *StoreHandler) GetStoreBySlug(c *fiber.Ctx) error {
	store, err := h.stores.BySlug(c.Context(), c.Params("slug"))
	if errors.Is(err, models.ErrNotFound) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	return h.render(c, store.Name, fiber.Map{"store": store})
}

// GetStoresByTag renders the tag browse page. The tag list and the matching
// stores are independent queries, so they run in parallel.
func (h *StoreHandler) GetStoresByTag(c *fiber.Ctx) error {
	tag := c.Params("tag")

	tagsChan := make(chan struct {
		tags []models.TagCount
		err  error
	}, 1)
	storesChan := make(chan struct {
		stores []models.Store
		err    error
	}, 1)

	ctx := c.Context()
	go func() {
		tags, err := h.stores.TagCounts(ctx)
		tagsChan <- struct {
			tags []models.TagCount
			err  error
		}{tags, err}
	}()
	go func() {
		stores, err := h.stores.ByTag(ctx, tag)
		storesChan <- struct {
			stores []models.Store
			err    error
		}{stores, err}
	}()

	tagsResult := <-tagsChan
	storesResult := <-storesChan
	if tagsResult.err != nil {
		return tagsResult.err
	}
	if storesResult.err != nil {
		return storesResult.err
	}
	return h.render(c, "Tags", fiber.Map{
		"tag":    tag,
		"tags":   tagsResult.tags,
		"stores": storesResult.stores,
	})
}

func (h *StoreHandler) MapPage(c *fiber.Ctx) error {
	return h.render(c, "Map", fiber.Map{})
}

func (h *StoreHandler) GetHearts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}
	user, err := h.users.ByID(c.Context(), userID)
	if err != nil {
		return err
	}
	stores, err := h.stores.ByIDs(c.Context(), user.Hearts)
	if err != nil {
		return err
	}
	return h.render(c, "Hearted Stores", fiber.Map{"stores": stores})
}

func (h *StoreHandler) GetTopStores(c *fiber.Ctx) error {
	stores, err := h.stores.TopRated(c.Context())
	if err != nil {
		return err
	}
	return h.render(c, "Top Stores!", fiber.Map{"stores": stores})
}

// SearchStores is the text-search JSON API.
func (h *StoreHandler) SearchStores(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing query parameter q"})
	}
	stores, err := h.stores.Search(c.Context(), query)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(stores)
}

// MapStores is the geospatial JSON API behind the map page.
func (h *StoreHandler) MapStores(c *fiber.Ctx) error {
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	if lngErr != nil || latErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lng and lat must be numbers"})
	}
	stores, err := h.stores.Near(c.Context(), lng, lat)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(stores)
}

// HeartStore toggles the store in the user's favorites and returns the
// updated user.
func (h *StoreHandler) HeartStore(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return apiError(c, err)
	}
	storeID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return apiError(c, models.ErrNotFound)
	}
	user, err := h.users.ToggleHeart(c.Context(), userID, storeID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(user)
}
