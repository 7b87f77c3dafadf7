package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/delish/storefront/internal/models"
	"github.com/delish/storefront/internal/repository"
)

const (
	tokenBytes     = 20
	resetTokenTTL  = time.Hour
	bearerTokenTTL = 24 * time.Hour
)

var validate = validator.New()

// AuthService owns credential hashing and verification, bearer-token issuance
// and the password-reset flow. It is deliberately independent of the User
// document definition.
type AuthService struct {
	users     repository.UserRepository
	mailer    Mailer
	jwtSecret []byte
	baseURL   string
	logger    *slog.Logger
}

func NewAuthService(users repository.UserRepository, mailer Mailer, jwtSecret, baseURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		mailer:    mailer,
		jwtSecret: []byte(jwtSecret),
		baseURL:   baseURL,
		logger:    logger,
	}
}

// ValidateProfile re-runs the registration field validation on a profile update.
func ValidateProfile(name, email string) error {
	user := &models.User{Email: email, Name: name}
	if err := validate.StructPartial(user, "Email", "Name"); err != nil {
		return &models.ValidationError{Field: "email", Message: "invalid email address or missing name"}
	}
	return nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyPassword compares a plain password with a hashed password.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a 24h HS256 bearer token for the user.
func (s *AuthService) GenerateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(bearerTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Register creates a new user with a hashed credential.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	user := &models.User{Email: email, Name: name}
	if err := validate.StructPartial(user, "Email", "Name"); err != nil {
		return nil, &models.ValidationError{Field: "email", Message: "invalid email address or missing name"}
	}
	if password == "" {
		return nil, &models.ValidationError{Field: "password", Message: "password cannot be blank"}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user.Password = hash
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies the credential and returns the user. Both a missing
// account and a wrong password come back as ErrAuthentication.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAuthentication
		}
		return nil, err
	}
	if !VerifyPassword(password, user.Password) {
		return nil, models.ErrAuthentication
	}
	return user, nil
}

func generateResetToken() (string, error) {
	token := make([]byte, tokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// RequestPasswordReset issues a reset token for the account and mails the
// reset link. A missing account is swallowed: the caller reports the same
// success either way so the endpoint can't be used to enumerate emails.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	token, err := generateResetToken()
	if err != nil {
		return err
	}
	user, err := s.users.SetResetToken(ctx, email, token, time.Now().Add(resetTokenTTL))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	resetURL := fmt.Sprintf("%s/account/reset/%s", s.baseURL, token)
	if err := s.mailer.SendPasswordReset(user, resetURL); err != nil {
		s.logger.Error("sending reset email failed", "email", user.Email, "err", err)
	}
	return nil
}

// ConsumeResetToken returns the user holding an unexpired token.
func (s *AuthService) ConsumeResetToken(ctx context.Context, token string) (*models.User, error) {
	return s.users.ByResetToken(ctx, token)
}

// ResetPassword re-validates the token, stores the new credential and clears
// the token fields, returning the user for auto-login.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	if newPassword == "" {
		return nil, &models.ValidationError{Field: "password", Message: "password cannot be blank"}
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return s.users.ResetPassword(ctx, token, hash)
}
