package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/repository"
	"github.com/delish/storefront/internal/services"
)

type UserHandler struct {
	Base
	users repository.UserRepository
	auth  *services.AuthService
	login func(c *fiber.Ctx, user *models.User) (string, error)
}

func NewUserHandler(base Base, users repository.UserRepository, auth *services.AuthService, authHandler *AuthHandler) *UserHandler {
	return &UserHandler{Base: base, users: users, auth: auth, login: authHandler.login}
}

func (h *UserHandler) RegisterRoutes(app *fiber.App, requireLogin fiber.Handler) {
	app.Get("/register", h.RegisterForm)
	app.Post("/register", h.Register)
	app.Get("/account", requireLogin, h.Account)
	app.Post("/account", requireLogin, h.UpdateAccount)
}

func (h *UserHandler) RegisterForm(c *fiber.Ctx) error {
	return h.render(c, "Register", fiber.Map{})
}

// Register creates the account and chains straight into a login, as the
// browser flow expects.
func (h *UserHandler) Register(c *fiber.Ctx) error {
	email := c.FormValue("email")
	name := c.FormValue("name")
	password := c.FormValue("password")
	confirm := c.FormValue("password-confirm")

	if email == "" && name == "" {
		var body struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&body); err == nil {
			email, name, password, confirm = body.Email, body.Name, body.Password, body.Password
		}
	}
	if password != confirm {
		return h.flashAndRedirect(c, "error", "Oops! Your passwords do not match!", "/register")
	}

	user, err := h.auth.Register(c.Context(), email, name, password)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			if c.Accepts("html", "json") == "json" {
				return apiError(c, err)
			}
			return h.flashAndRedirect(c, "error", "That email is already registered.", "/register")
		}
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			if c.Accepts("html", "json") == "json" {
				return apiError(c, err)
			}
			return h.flashAndRedirect(c, "error", validationErr.Message, "/register")
		}
		return err
	}

	token, err := h.login(c, user)
	if err != nil {
		return err
	}
	if c.Accepts("html", "json") == "json" {
		return c.JSON(fiber.Map{"user": user, "token": token})
	}
	return h.flashAndRedirect(c, "success", "You are now registered and logged in!", "/")
}

func (h *UserHandler) Account(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}
	user, err := h.users.ByID(c.Context(), userID)
	if err != nil {
		return err
	}
	return h.render(c, "Edit Your Account", fiber.Map{"user": user, "gravatar": user.Gravatar()})
}

func (h *UserHandler) UpdateAccount(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return h.flashAndRedirect(c, "error", "You must be logged in to do that.", "/login")
	}

	name := c.FormValue("name")
	email := c.FormValue("email")
	if err := services.ValidateProfile(name, email); err != nil {
		return h.flashAndRedirect(c, "error", userMessage(err), "/account")
	}

	_, err = h.users.UpdateProfile(c.Context(), userID, name, email)
	if errors.Is(err, models.ErrDuplicateEmail) {
		return h.flashAndRedirect(c, "error", "That email is already registered.", "/account")
	}
	if err != nil {
		return err
	}
	return h.flashAndRedirect(c, "success", "Account successfully updated!", "/account")
}
