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

// RecoveryService implements the forgot/reset password flow. RequestReset
// is deliberately silent about whether the email is registered.
type RecoveryService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	credRepo repository.LocalCredentialRepository
	tokenSvc *TokenService
	tokens   TokenProvider
	hasher   PasswordHasher
	notifier AccountNotifier
	guard    CooldownGuard
	logger   *slog.Logger
}

func NewRecoveryService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	credRepo repository.LocalCredentialRepository,
	tokenSvc *TokenService,
	tokens TokenProvider,
	hasher PasswordHasher,
	notifier AccountNotifier,
	guard CooldownGuard,
	logger *slog.Logger,
) *RecoveryService {
	return &RecoveryService{
		cfg:      cfg,
		userRepo: userRepo,
		credRepo: credRepo,
		tokenSvc: tokenSvc,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		guard:    guard,
		logger:   logger,
	}
}

// RequestReset issues a password reset token and emails it. It returns nil
// for unknown or unverified emails so responses carry no account-existence
// signal; only infrastructure failures surface as errors.
func (s *RecoveryService) RequestReset(ctx context.Context, email, ip string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}

	if wait, err := s.guard.Check(ctx, CooldownScopeRecovery, email, ip); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard check failed", "error", err)
	} else if wait > 0 {
		return &CooldownError{RetryAfter: wait}
	}
	// Every request costs a guard bump, known email or not, so the two
	// cases are indistinguishable from outside.
	if _, err := s.guard.RegisterFailure(ctx, CooldownScopeRecovery, email, ip); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard bump failed", "error", err)
	}

	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil
		}
		return err
	}
	if !cred.EmailVerified {
		return nil
	}

	user, err := s.userRepo.FindByID(cred.UserID)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposePasswordReset, s.cfg.AuthPasswordResetTokenTTL)
	if err != nil {
		return err
	}

	notifyErr := s.notifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		ResetURL:  BuildActionURL(s.cfg.AuthPasswordResetBaseURL, "", token.Value),
	})
	if notifyErr != nil {
		// Delivery is best-effort; the token stays valid and the user can
		// retry the request.
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			"user_id", user.ID,
			"error", notifyErr,
		)
	}
	return nil
}

// CompleteReset redeems a reset token and installs the new password. All
// token failures, including an email/token mismatch, collapse into
// ErrPurposeTokenInvalid.
func (s *RecoveryService) CompleteReset(ctx context.Context, email, token, newPassword string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if len(newPassword) < s.cfg.AuthMinPasswordLength {
		return ErrWeakPassword
	}

	// Resolve the account first: a mistyped email fails here without
	// burning the still-valid token.
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrPurposeTokenInvalid
		}
		return err
	}

	userID, err := s.tokens.Consume(ctx, domain.TokenPurposePasswordReset, token)
	if err != nil {
		return err
	}
	if userID != user.ID {
		return ErrPurposeTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.credRepo.UpdatePassword(userID, hash); err != nil {
		return err
	}
	// A successful reset proves control of the mailbox, so the lockout
	// and cooldown state start over.
	if err := s.credRepo.ResetFailedAccess(userID); err != nil {
		return err
	}
	if err := s.guard.Reset(ctx, CooldownScopeLogin, email, ""); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard reset failed", "error", err)
	}
	if err := s.tokenSvc.RevokeAll(userID, "password_reset"); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID)
	return nil
}
