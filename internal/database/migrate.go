package database

import (
	"github.com/arjunms/account-service/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.LocalCredential{},
		&domain.VerificationToken{},
		&domain.ExternalIdentity{},
		&domain.Session{},
	)
}
