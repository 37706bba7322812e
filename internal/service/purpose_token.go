package service

import (
	"context"
	"errors"
	"time"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
	"github.com/arjunms/account-service/internal/security"
)

// ErrPurposeTokenInvalid covers every verification failure: unknown value,
// wrong purpose, expired, or already consumed. Callers never learn which.
var ErrPurposeTokenInvalid = errors.New("invalid or expired token")

// PurposeToken is an opaque, single-use, time-boxed credential bound to a
// user and a workflow. Value carries the raw secret; it is never stored.
type PurposeToken struct {
	Value     string
	Purpose   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and redeems purpose tokens.
type TokenProvider interface {
	// Issue invalidates any live token for the same (user, purpose) so at
	// most one is redeemable at a time, then mints a fresh one.
	Issue(ctx context.Context, userID uint, purpose string, ttl time.Duration) (PurposeToken, error)

	// Consume redeems a raw token for its purpose and returns the bound
	// user id. A token is redeemable at most once.
	Consume(ctx context.Context, purpose, raw string) (uint, error)
}

type StoreTokenProvider struct {
	repo repository.VerificationTokenRepository
	now  func() time.Time
}

func NewStoreTokenProvider(repo repository.VerificationTokenRepository) *StoreTokenProvider {
	return &StoreTokenProvider{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (p *StoreTokenProvider) Issue(ctx context.Context, userID uint, purpose string, ttl time.Duration) (PurposeToken, error) {
	now := p.now()
	if err := p.repo.InvalidateActiveByUserPurpose(userID, purpose, now); err != nil {
		return PurposeToken{}, err
	}
	raw, err := security.NewRandomString(32)
	if err != nil {
		return PurposeToken{}, err
	}
	expiresAt := now.Add(ttl)
	if err := p.repo.Create(&domain.VerificationToken{
		UserID:    userID,
		TokenHash: security.HashOpaqueToken(raw),
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	}); err != nil {
		return PurposeToken{}, err
	}
	return PurposeToken{Value: raw, Purpose: purpose, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

func (p *StoreTokenProvider) Consume(ctx context.Context, purpose, raw string) (uint, error) {
	if raw == "" {
		return 0, ErrPurposeTokenInvalid
	}
	now := p.now()
	record, err := p.repo.FindActiveByHashPurpose(security.HashOpaqueToken(raw), purpose, now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return 0, ErrPurposeTokenInvalid
		}
		return 0, err
	}
	if err := p.repo.Consume(record.ID, record.UserID, now); err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return 0, ErrPurposeTokenInvalid
		}
		return 0, err
	}
	return record.UserID, nil
}
