package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/arjunms/account-service/internal/config"
	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
)

// ConfirmationService implements email address confirmation. Like password
// recovery, requests for unknown emails succeed silently.
type ConfirmationService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	credRepo repository.LocalCredentialRepository
	tokens   TokenProvider
	notifier AccountNotifier
	logger   *slog.Logger
}

func NewConfirmationService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	credRepo repository.LocalCredentialRepository,
	tokens TokenProvider,
	notifier AccountNotifier,
	logger *slog.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		cfg:      cfg,
		userRepo: userRepo,
		credRepo: credRepo,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *ConfirmationService) RequestConfirmation(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}

	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil
		}
		return err
	}
	if cred.EmailVerified {
		return nil
	}

	user, err := s.userRepo.FindByID(cred.UserID)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposeEmailVerify, s.cfg.AuthEmailVerifyTokenTTL)
	if err != nil {
		return err
	}

	notifyErr := s.notifier.SendEmailVerification(ctx, VerificationNotification{
		UserID:          user.ID,
		Email:           user.Email,
		Name:            user.DisplayName(),
		Token:           token.Value,
		ExpiresAt:       token.ExpiresAt,
		VerificationURL: BuildActionURL(s.cfg.AuthEmailVerifyBaseURL, "", token.Value),
	})
	if notifyErr != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			"user_id", user.ID,
			"error", notifyErr,
		)
	}
	return nil
}

// Confirm redeems a verification token and marks the credential's email
// address as verified. Confirming an already-verified address is a no-op
// as long as the token itself is live.
func (s *ConfirmationService) Confirm(ctx context.Context, token string) error {
	userID, err := s.tokens.Consume(ctx, domain.TokenPurposeEmailVerify, token)
	if err != nil {
		return err
	}
	if err := s.credRepo.MarkEmailVerified(userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email verified", "user_id", userID)
	return nil
}
