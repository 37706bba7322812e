package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type VerificationNotification struct {
	UserID          uint
	Email           string
	Name            string
	Token           string
	ExpiresAt       time.Time
	VerificationURL string
}

type EmailVerificationNotifier interface {
	SendEmailVerification(ctx context.Context, notification VerificationNotification) error
}

type PasswordResetNotification struct {
	UserID    uint
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
	ResetURL  string
}

type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error
}

// AccountNotifier bundles the outbound messages the account flows emit.
// Delivery is best-effort: callers log failures and proceed, so a broken
// mail provider never turns registration or recovery into an error.
type AccountNotifier interface {
	EmailVerificationNotifier
	PasswordResetNotifier
}

// DevAccountNotifier logs the token links instead of sending mail. Used in
// local development and as the fallback when no provider is configured.
type DevAccountNotifier struct {
	logger *slog.Logger
}

func NewDevAccountNotifier(logger *slog.Logger) *DevAccountNotifier {
	return &DevAccountNotifier{logger: logger}
}

func (n *DevAccountNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	link := notification.VerificationURL
	if strings.TrimSpace(link) == "" {
		link = fmt.Sprintf("token=%s", notification.Token)
	}
	n.logger.InfoContext(ctx, "email verification token issued",
		"user_id", notification.UserID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"verification", link,
	)
	return nil
}

func (n *DevAccountNotifier) SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error {
	link := notification.ResetURL
	if strings.TrimSpace(link) == "" {
		link = fmt.Sprintf("token=%s", notification.Token)
	}
	n.logger.InfoContext(ctx, "password reset token issued",
		"user_id", notification.UserID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"reset", link,
	)
	return nil
}

// BuildActionURL composes the browser link embedded in outbound mail:
// baseURL + path with the token as a query parameter.
func BuildActionURL(baseURL, path, token string) string {
	if strings.TrimSpace(baseURL) == "" {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
