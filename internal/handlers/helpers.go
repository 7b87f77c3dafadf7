package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/delish/storefront/internal/middleware"
	"github.com/delish/storefront/internal/models"
)

// Base carries what every handler needs: the session store for flash
// messages and the browser login state.
type Base struct {
	Sessions *session.Store
}

// render responds with the JSON view payload for a browser page: title, the
// page data and any pending flash messages (consumed here).
func (b Base) render(c *fiber.Ctx, title string, data fiber.Map) error {
	payload := fiber.Map{"title": title}
	for k, v := range data {
		payload[k] = v
	}
	if sess, err := b.Sessions.Get(c); err == nil {
		if flashes := middleware.TakeFlashes(sess); len(flashes) > 0 {
			payload["flashes"] = flashes
			_ = sess.Save()
		}
	}
	return c.JSON(payload)
}

// flashAndRedirect queues a flash message and redirects, the response shape
// for every mutating browser route.
func (b Base) flashAndRedirect(c *fiber.Ctx, kind, message, to string) error {
	if sess, err := b.Sessions.Get(c); err == nil {
		middleware.AddFlash(sess, kind, message)
		_ = sess.Save()
	}
	return c.Redirect(to)
}

// currentUserID returns the authenticated user's id, set by the auth middleware.
func currentUserID(c *fiber.Ctx) (primitive.ObjectID, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok || raw == "" {
		return primitive.NilObjectID, models.ErrAuthentication
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, models.ErrAuthentication
	}
	return id, nil
}

// apiError maps a repository error onto a JSON error response.
func apiError(c *fiber.Ctx, err error) error {
	var validationErr *models.ValidationError
	var pageErr *models.PageOutOfRangeError
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	case errors.As(err, &pageErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrUploadRejected), errors.Is(err, models.ErrTokenInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrAuthentication):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrAuthorization):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateEmail):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return err
	}
}

// userMessage extracts the flash-worthy text from a repository error.
func userMessage(err error) string {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	return err.Error()
}
