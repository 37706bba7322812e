package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/arjunms/account-service/internal/config"
	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
)

var (
	ErrLocalAuthDisabled  = errors.New("local auth is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailUnverified    = errors.New("email verification required")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUserNotFound       = errors.New("user not found")
)

// CooldownError reports an active abuse cooldown. RetryAfter is how long
// the caller has to wait; the HTTP layer maps it to 429 + Retry-After.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

type LoginResult struct {
	User                 *domain.User  `json:"user"`
	AccessToken          string        `json:"-"`
	RefreshToken         string        `json:"-"`
	CSRFToken            string        `json:"csrf_token,omitempty"`
	ExpiresAt            time.Time     `json:"expires_at,omitempty"`
	RememberMe           bool          `json:"-"`
	RefreshTTL           time.Duration `json:"-"`
	RequiresVerification bool          `json:"requires_verification,omitempty"`
}

// AuthService implements local registration and password login, including
// the per-credential lockout and the cross-instance cooldown guard.
type AuthService struct {
	cfg      *config.Config
	tokenSvc *TokenService
	userRepo repository.UserRepository
	credRepo repository.LocalCredentialRepository
	hasher   PasswordHasher
	tokens   TokenProvider
	notifier AccountNotifier
	guard    CooldownGuard
	logger   *slog.Logger
}

func NewAuthService(
	cfg *config.Config,
	tokenSvc *TokenService,
	userRepo repository.UserRepository,
	credRepo repository.LocalCredentialRepository,
	hasher PasswordHasher,
	tokens TokenProvider,
	notifier AccountNotifier,
	guard CooldownGuard,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		tokenSvc: tokenSvc,
		userRepo: userRepo,
		credRepo: credRepo,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		guard:    guard,
		logger:   logger,
	}
}

func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*LoginResult, error) {
	if !s.cfg.AuthLocalEnabled {
		return nil, ErrLocalAuthDisabled
	}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(params.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:     email,
		FirstName: strings.TrimSpace(params.FirstName),
		LastName:  strings.TrimSpace(params.LastName),
		Status:    domain.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	verified := !s.cfg.AuthLocalRequireEmailVerification
	credential := &domain.LocalCredential{
		UserID:        user.ID,
		PasswordHash:  hash,
		EmailVerified: verified,
	}
	if verified {
		now := time.Now().UTC()
		credential.EmailVerifiedAt = &now
	}
	if err := s.credRepo.Create(credential); err != nil {
		return nil, err
	}

	if !verified {
		s.sendVerificationEmail(ctx, user)
		return &LoginResult{User: user, RequiresVerification: true}, nil
	}

	return s.startSession(user, false, "", "")
}

func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool, ua, ip string) (*LoginResult, error) {
	if !s.cfg.AuthLocalEnabled {
		return nil, ErrLocalAuthDisabled
	}
	email = strings.TrimSpace(strings.ToLower(email))

	if wait, err := s.guard.Check(ctx, CooldownScopeLogin, email, ip); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard check failed", "error", err)
	} else if wait > 0 {
		return nil, &CooldownError{RetryAfter: wait}
	}

	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			// Unknown accounts burn a guard failure too, so probing for
			// registered emails costs the same as guessing passwords.
			s.registerGuardFailure(ctx, CooldownScopeLogin, email, ip)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()
	if cred.LockedOut(now) {
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(cred.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.registerGuardFailure(ctx, CooldownScopeLogin, email, ip)
		count, incErr := s.credRepo.IncrementFailedAccess(cred.UserID)
		if incErr != nil {
			return nil, incErr
		}
		if count >= s.cfg.AuthLockoutMaxFailedAttempts {
			until := now.Add(s.cfg.AuthLockoutDuration)
			if lockErr := s.credRepo.SetLockout(cred.UserID, until); lockErr != nil {
				return nil, lockErr
			}
			s.logger.WarnContext(ctx, "account locked out",
				"user_id", cred.UserID,
				"failed_attempts", count,
				"until", until,
			)
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if s.cfg.AuthLocalRequireEmailVerification && !cred.EmailVerified {
		return nil, ErrEmailUnverified
	}

	if err := s.credRepo.ResetFailedAccess(cred.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Reset(ctx, CooldownScopeLogin, email, ip); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard reset failed", "error", err)
	}

	user, err := s.userRepo.FindByID(cred.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.TouchLastLogin(user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	}

	return s.startSession(user, rememberMe, ua, ip)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	cred, err := s.credRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	ok, err := s.hasher.Verify(cred.PasswordHash, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.credRepo.UpdatePassword(userID, hash); err != nil {
		return err
	}
	// Other devices lose their sessions; the current client re-logs in
	// with the fresh cookie pair issued by the handler.
	if err := s.tokenSvc.RevokeAll(userID, "password_changed"); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken, ua, ip string) (*LoginResult, error) {
	tokens, userID, err := s.tokenSvc.Rotate(refreshToken, func(id uint) (*domain.User, error) {
		u, err := s.userRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrInvalidRefreshToken
			}
			return nil, err
		}
		return u, nil
	}, ua, ip)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		CSRFToken:    tokens.CSRFToken,
		ExpiresAt:    tokens.ExpiresAt,
		RefreshTTL:   tokens.RefreshTTL,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if err := s.tokenSvc.RevokeAll(userID, "logout"); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	return nil
}

// ParseUserID converts a JWT subject back to the numeric user id.
func (s *AuthService) ParseUserID(subject string) (uint, error) {
	id64, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return uint(id64), nil
}

func (s *AuthService) startSession(user *domain.User, rememberMe bool, ua, ip string) (*LoginResult, error) {
	tokens, err := s.tokenSvc.Issue(user, rememberMe, ua, ip)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		CSRFToken:    tokens.CSRFToken,
		ExpiresAt:    tokens.ExpiresAt,
		RememberMe:   rememberMe,
		RefreshTTL:   tokens.RefreshTTL,
	}, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *domain.User) {
	token, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposeEmailVerify, s.cfg.AuthEmailVerifyTokenTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue verification token", "user_id", user.ID, "error", err)
		return
	}
	err = s.notifier.SendEmailVerification(ctx, VerificationNotification{
		UserID:          user.ID,
		Email:           user.Email,
		Name:            user.DisplayName(),
		Token:           token.Value,
		ExpiresAt:       token.ExpiresAt,
		VerificationURL: BuildActionURL(s.cfg.AuthEmailVerifyBaseURL, "", token.Value),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) registerGuardFailure(ctx context.Context, scope CooldownScope, identity, ip string) {
	if _, err := s.guard.RegisterFailure(ctx, scope, identity, ip); err != nil {
		s.logger.WarnContext(ctx, "cooldown guard failure not recorded", "error", err)
	}
}

func (s *AuthService) validatePassword(password string) error {
	if len(password) < s.cfg.AuthMinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
