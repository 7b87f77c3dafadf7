package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/repository"
)

type ReviewHandler struct {
	Base
	reviews repository.ReviewRepository
	stores  repository.StoreRepository
}

func NewReviewHandler(base Base, reviews repository.ReviewRepository, stores repository.StoreRepository) *ReviewHandler {
	return &ReviewHandler{Base: base, reviews: reviews, stores: stores}
}

func (h *ReviewHandler) RegisterRoutes(app *fiber.App, requireLogin fiber.Handler) {
	app.Post("/reviews/:id", requireLogin, h.AddReview)
}

// AddReview creates a review against the store in the URL. Nothing stops a
// user reviewing the same store twice.
func (h *ReviewHandler) AddReview(c *fiber.Ctx) error {
	authorID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}
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

	rating, _ := strconv.Atoi(c.FormValue("rating"))
	review := &models.Review{
		Author: authorID,
		Store:  storeID,
		Rating: rating,
		Text:   c.FormValue("text"),
	}
	if err := h.reviews.Add(c.Context(), review); err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return h.flashAndRedirect(c, "error", validationErr.Message, "/store/"+store.Slug)
		}
		return err
	}
	return h.flashAndRedirect(c, "success", "Review saved!", "/store/"+store.Slug)
}
