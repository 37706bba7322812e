package service

import (
	"context"
	"fmt"
	"time"

	"github.com/arjunms/account-service/internal/email"
)

// EmailAccountNotifier renders account notifications and hands them to an
// email.Sender. Sends carry a bounded timeout so a slow provider cannot pin
// a request goroutine.
type EmailAccountNotifier struct {
	sender      email.Sender
	frontendURL string
	sendTimeout time.Duration
}

func NewEmailAccountNotifier(sender email.Sender, frontendURL string, sendTimeout time.Duration) *EmailAccountNotifier {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &EmailAccountNotifier{sender: sender, frontendURL: frontendURL, sendTimeout: sendTimeout}
}

func (n *EmailAccountNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	link := notification.VerificationURL
	if link == "" {
		link = BuildActionURL(n.frontendURL, "/verify-email", notification.Token)
	}
	if link == "" {
		link = fmt.Sprintf("token=%s", notification.Token)
	}
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	return n.sender.Send(ctx, email.Message{
		To:      notification.Email,
		Subject: "Confirm your email address",
		HTML:    email.EmailVerificationBody(notification.Name, link, notification.Token, notification.ExpiresAt),
	})
}

func (n *EmailAccountNotifier) SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error {
	link := notification.ResetURL
	if link == "" {
		link = BuildActionURL(n.frontendURL, "/reset-password", notification.Token)
	}
	if link == "" {
		link = fmt.Sprintf("token=%s", notification.Token)
	}
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	return n.sender.Send(ctx, email.Message{
		To:      notification.Email,
		Subject: "Reset your password",
		HTML:    email.PasswordResetBody(notification.Name, link, notification.Token, notification.ExpiresAt),
	})
}
