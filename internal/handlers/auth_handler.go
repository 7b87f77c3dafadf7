package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/services"
)

type AuthHandler struct {
	Base
	auth *services.AuthService
}

func NewAuthHandler(base Base, auth *services.AuthService) *AuthHandler {
	return &AuthHandler{Base: base, auth: auth}
}

func (h *AuthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/login", h.LoginForm)
	app.Post("/login", h.Login)
	app.Get("/logout", h.Logout)
	app.Post("/account/forgot", h.Forgot)
	app.Get("/account/reset/:token", h.ResetForm)
	app.Post("/account/reset/:token", h.Reset)
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return h.render(c, "Login", fiber.Map{})
}

// login establishes the browser session and issues the API bearer token.
func (h *AuthHandler) login(c *fiber.Ctx, user *models.User) (string, error) {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return "", err
	}
	sess.Set("user_id", user.ID.Hex())
	if err := sess.Save(); err != nil {
		return "", err
	}
	return h.auth.GenerateToken(user.ID.Hex())
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	password := c.FormValue("password")
	if email == "" || password == "" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&body); err == nil {
			email, password = body.Email, body.Password
		}
	}

	user, err := h.auth.Authenticate(c.Context(), email, password)
	if errors.Is(err, models.ErrAuthentication) {
		return h.flashAndRedirect(c, "error", "Failed login!", "/login")
	}
	if err != nil {
		return err
	}

	token, err := h.login(c, user)
	if err != nil {
		return err
	}
	if c.Accepts("html", "json") == "json" {
		return c.JSON(fiber.Map{"user": user, "token": token})
	}
	return h.flashAndRedirect(c, "success", "You are now logged in!", "/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sess, err := h.Sessions.Get(c); err == nil {
		_ = sess.Destroy()
	}
	return h.flashAndRedirect(c, "success", "You are now logged out.", "/")
}

// Forgot starts the password-reset flow. The response is the same whether or
// not the email has an account, so it can't be used to probe for one.
func (h *AuthHandler) Forgot(c *fiber.Ctx) error {
	email := c.FormValue("email")
	if err := h.auth.RequestPasswordReset(c.Context(), email); err != nil {
		return err
	}
	return h.flashAndRedirect(c, "success", "You have been emailed a password reset link.", "/login")
}

func (h *AuthHandler) ResetForm(c *fiber.Ctx) error {
	_, err := h.auth.ConsumeResetToken(c.Context(), c.Params("token"))
	if errors.Is(err, models.ErrTokenInvalid) {
		return h.flashAndRedirect(c, "error", "Password reset token is invalid or expired.", "/login")
	}
	if err != nil {
		return err
	}
	return h.render(c, "Reset Your Password", fiber.Map{})
}

func (h *AuthHandler) Reset(c *fiber.Ctx) error {
	password := c.FormValue("password")
	confirm := c.FormValue("password-confirm")
	if password != confirm {
		return h.flashAndRedirect(c, "error", "Passwords do not match!", c.OriginalURL())
	}

	// The token is re-checked here: the reset form may have sat open past the
	// expiry window.
	user, err := h.auth.ResetPassword(c.Context(), c.Params("token"), password)
	if errors.Is(err, models.ErrTokenInvalid) {
		return h.flashAndRedirect(c, "error", "Password reset token is invalid or expired.", "/login")
	}
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return h.flashAndRedirect(c, "error", validationErr.Message, c.OriginalURL())
		}
		return err
	}

	if _, err := h.login(c, user); err != nil {
		return err
	}
	return h.flashAndRedirect(c, "success", "Your password has been reset!", "/")
}
