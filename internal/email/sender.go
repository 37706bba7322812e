package email

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a single outbound email. HTML is the rendered body; templates
// live in templates.go.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message through one provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures the delivery provider.
type Config struct {
	// Provider: "log", "smtp", or "resend".
	Provider string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// API key for Resend.
	ResendAPIKey string

	FromAddress string
	FromName    string
}

// LogSender writes the message to the log instead of delivering it. Default
// in development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email delivery skipped (log provider)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// NewSender builds the Sender named by cfg.Provider.
func NewSender(cfg *Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "log", "":
		logger.Info("using log email sender (emails will be logged only)")
		return NewLogSender(logger), nil

	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
			return nil, fmt.Errorf("smtp configuration incomplete: host and port required")
		}
		logger.Info("using smtp email sender", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPSender(cfg, logger), nil

	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend api key is required")
		}
		logger.Info("using resend email sender")
		return NewResendSender(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown email provider: %s (valid: log, smtp, resend)", cfg.Provider)
	}
}

func fromHeader(from, fromName string) string {
	if fromName != "" {
		return fmt.Sprintf("%s <%s>", fromName, from)
	}
	return from
}
