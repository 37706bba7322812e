package service

import (
	"context"

	"github.com/arjunms/account-service/internal/domain"
)

// PasswordHasher is the opaque one-way hash capability. The argon2id
// implementation lives in internal/security.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthServiceInterface interface {
	Register(ctx context.Context, params RegisterParams) (*LoginResult, error)
	Login(ctx context.Context, email, password string, rememberMe bool, ua, ip string) (*LoginResult, error)
	ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	Refresh(ctx context.Context, refreshToken, ua, ip string) (*LoginResult, error)
	Logout(ctx context.Context, userID uint) error
	ParseUserID(subject string) (uint, error)
}

type RecoveryServiceInterface interface {
	RequestReset(ctx context.Context, email, ip string) error
	CompleteReset(ctx context.Context, email, token, newPassword string) error
}

type ConfirmationServiceInterface interface {
	RequestConfirmation(ctx context.Context, email string) error
	Confirm(ctx context.Context, token string) error
}

type ExternalServiceInterface interface {
	LoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*LinkOutcome, error)
	CompleteRegistration(ctx context.Context, assertion ExternalAssertion, profile ExternalProfile) (*domain.User, error)
}

type UserServiceInterface interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
	LinkedIdentities(ctx context.Context, userID uint) ([]domain.ExternalIdentity, error)
}

// SessionIssuer lets handlers mint a session for a user that authenticated
// outside the password flow (external identity callback).
type SessionIssuer interface {
	Issue(user *domain.User, rememberMe bool, ua, ip string) (*SessionTokens, error)
}
