package service

import (
	"context"
	"errors"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
)

type UserService struct {
	userRepo     repository.UserRepository
	identityRepo repository.ExternalIdentityRepository
}

func NewUserService(userRepo repository.UserRepository, identityRepo repository.ExternalIdentityRepository) *UserService {
	return &UserService{userRepo: userRepo, identityRepo: identityRepo}
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// LinkedIdentities lists the external identities attached to an account.
func (s *UserService) LinkedIdentities(ctx context.Context, userID uint) ([]domain.ExternalIdentity, error) {
	return s.identityRepo.ListByUserID(userID)
}
