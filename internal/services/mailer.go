package services

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/delish/storefront/internal/config"
	"github.com/delish/storefront/internal/models"
)

// Mailer delivers transactional mail. The password-reset flow is its only
// caller right now.
type Mailer interface {
	SendPasswordReset(user *models.User, resetURL string) error
}

// SMTPMailer sends mail over SMTP via gomail.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) SendPasswordReset(user *models.User, resetURL string) error {
	if m.cfg.Host == "" {
		m.logger.Warn("smtp not configured, skipping reset email", "to", user.Email)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", user.Email)
	msg.SetHeader("Subject", "Password Reset")
	msg.SetBody("text/html", fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password Reset</h2>
    <p>Hi %s,</p>
    <p>You requested a password reset. The link below is valid for one hour:</p>
    <p><a href="%s">%s</a></p>
    <p>If you didn't request this, you can safely ignore this email.</p>
  </div>
</body>
</html>`, user.Name, resetURL, resetURL))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	m.logger.Info("reset email sent", "to", user.Email)
	return nil
}
