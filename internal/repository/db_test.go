package repository

import (
	"testing"

	"gorm.io/gorm"

	"github.com/arjunms/account-service/internal/database"
	"github.com/arjunms/account-service/internal/domain"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Each sqlite :memory: connection is its own database, so the pool
	// must stay at a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUserForTest(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Status: domain.UserStatusActive}
	if err := NewUserRepository(db).Create(u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}
