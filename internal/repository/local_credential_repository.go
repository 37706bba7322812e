package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/arjunms/account-service/internal/domain"

	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("local credential not found")

type LocalCredentialRepository interface {
	Create(credential *domain.LocalCredential) error
	FindByUserID(userID uint) (*domain.LocalCredential, error)
	FindByEmail(email string) (*domain.LocalCredential, error)
	UpdatePassword(userID uint, newHash string) error
	MarkEmailVerified(userID uint) error

	// IncrementFailedAccess bumps the failure counter with a single
	// UPDATE so concurrent failed logins cannot lose updates, then
	// returns the resulting count.
	IncrementFailedAccess(userID uint) (int, error)
	ResetFailedAccess(userID uint) error
	SetLockout(userID uint, until time.Time) error
}

type GormLocalCredentialRepository struct {
	db *gorm.DB
}

func NewLocalCredentialRepository(db *gorm.DB) LocalCredentialRepository {
	return &GormLocalCredentialRepository{db: db}
}

func (r *GormLocalCredentialRepository) Create(credential *domain.LocalCredential) error {
	return r.db.Create(credential).Error
}

func (r *GormLocalCredentialRepository) FindByUserID(userID uint) (*domain.LocalCredential, error) {
	var c domain.LocalCredential
	if err := r.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormLocalCredentialRepository) FindByEmail(email string) (*domain.LocalCredential, error) {
	var c domain.LocalCredential
	normalized := strings.TrimSpace(strings.ToLower(email))
	err := r.db.
		Joins("JOIN users ON users.id = local_credentials.user_id").
		Where("users.email = ?", normalized).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormLocalCredentialRepository) UpdatePassword(userID uint, newHash string) error {
	res := r.db.Model(&domain.LocalCredential{}).Where("user_id = ?", userID).
		Updates(map[string]any{"password_hash": newHash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func (r *GormLocalCredentialRepository) MarkEmailVerified(userID uint) error {
	now := time.Now().UTC()
	return r.db.Model(&domain.LocalCredential{}).Where("user_id = ?", userID).
		Updates(map[string]any{"email_verified": true, "email_verified_at": &now, "updated_at": now}).Error
}

func (r *GormLocalCredentialRepository) IncrementFailedAccess(userID uint) (int, error) {
	res := r.db.Model(&domain.LocalCredential{}).Where("user_id = ?", userID).
		UpdateColumn("failed_access_count", gorm.Expr("failed_access_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrCredentialNotFound
	}
	cred, err := r.FindByUserID(userID)
	if err != nil {
		return 0, err
	}
	return cred.FailedAccessCount, nil
}

func (r *GormLocalCredentialRepository) ResetFailedAccess(userID uint) error {
	return r.db.Model(&domain.LocalCredential{}).Where("user_id = ?", userID).
		Updates(map[string]any{"failed_access_count": 0, "lockout_until": nil, "updated_at": time.Now().UTC()}).Error
}

// SetLockout starts a lockout window and zeroes the failure counter, so
// the count restarts once the window lapses.
func (r *GormLocalCredentialRepository) SetLockout(userID uint, until time.Time) error {
	return r.db.Model(&domain.LocalCredential{}).Where("user_id = ?", userID).
		Updates(map[string]any{"lockout_until": until, "failed_access_count": 0, "updated_at": time.Now().UTC()}).Error
}
