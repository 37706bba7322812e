package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// SMTPSender delivers via plain SMTP, typically a local mailhog/mailpit
// instance during development.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	logger   *slog.Logger
}

func NewSMTPSender(cfg *Config, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	raw := fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		fromHeader(s.from, s.fromName), msg.To, msg.Subject, msg.HTML,
	)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{msg.To}, []byte(raw)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send email via smtp",
			"error", err,
			"to", msg.To,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent via smtp", "to", msg.To, "subject", msg.Subject)
	return nil
}
