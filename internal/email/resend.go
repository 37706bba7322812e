package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers via the Resend API (production).
type ResendSender struct {
	client   *resend.Client
	from     string
	fromName string
	logger   *slog.Logger
}

func NewResendSender(cfg *Config, logger *slog.Logger) *ResendSender {
	return &ResendSender{
		client:   resend.NewClient(cfg.ResendAPIKey),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    fromHeader(s.from, s.fromName),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send email via resend",
			"error", err,
			"to", msg.To,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent via resend",
		"to", msg.To,
		"subject", msg.Subject,
		"email_id", sent.Id,
	)
	return nil
}
