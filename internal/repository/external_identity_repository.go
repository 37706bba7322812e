package repository

import (
	"errors"

	"github.com/arjunms/account-service/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrExternalIdentityNotFound = errors.New("external identity not found")

	// ErrExternalIdentityTaken is returned when the (provider, subject)
	// pair is already linked to a user. The unique constraint makes the
	// concurrent-link race lose deterministically.
	ErrExternalIdentityTaken = errors.New("external identity already linked")
)

type ExternalIdentityRepository interface {
	FindByProviderSubject(provider, subjectID string) (*domain.ExternalIdentity, error)
	Create(identity *domain.ExternalIdentity) error
	ListByUserID(userID uint) ([]domain.ExternalIdentity, error)
}

type GormExternalIdentityRepository struct{ db *gorm.DB }

func NewExternalIdentityRepository(db *gorm.DB) ExternalIdentityRepository {
	return &GormExternalIdentityRepository{db: db}
}

func (r *GormExternalIdentityRepository) FindByProviderSubject(provider, subjectID string) (*domain.ExternalIdentity, error) {
	var id domain.ExternalIdentity
	err := r.db.Where("provider = ? AND subject_id = ?", provider, subjectID).First(&id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExternalIdentityNotFound
		}
		return nil, err
	}
	return &id, nil
}

func (r *GormExternalIdentityRepository) Create(identity *domain.ExternalIdentity) error {
	if err := r.db.Create(identity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrExternalIdentityTaken
		}
		return err
	}
	return nil
}

func (r *GormExternalIdentityRepository) ListByUserID(userID uint) ([]domain.ExternalIdentity, error) {
	var ids []domain.ExternalIdentity
	err := r.db.Where("user_id = ?", userID).Order("id").Find(&ids).Error
	return ids, err
}
