package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arjunms/account-service/internal/domain"
)

func seedSessionForTest(t *testing.T, repo SessionRepository, userID uint, hash string, expiresAt time.Time) *domain.Session {
	t.Helper()
	s := &domain.Session{UserID: userID, RefreshTokenHash: hash, UserAgent: "ua", IP: "127.0.0.1", ExpiresAt: expiresAt}
	if err := repo.Create(s); err != nil {
		t.Fatalf("seed session %s: %v", hash, err)
	}
	return s
}

func TestSessionRepositoryFindValidByHash(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewSessionRepository(db)
	user := seedUserForTest(t, db, "person@example.com")

	live := seedSessionForTest(t, repo, user.ID, "hash-live", time.Now().Add(time.Hour))
	seedSessionForTest(t, repo, user.ID, "hash-expired", time.Now().Add(-time.Hour))

	found, err := repo.FindValidByHash("hash-live")
	if err != nil {
		t.Fatalf("find live: %v", err)
	}
	if found.ID != live.ID || found.UserID != user.ID {
		t.Fatalf("unexpected session %+v", found)
	}

	if _, err := repo.FindValidByHash("hash-expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session hidden, got %v", err)
	}
	if _, err := repo.FindValidByHash("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected unknown hash hidden, got %v", err)
	}
}

func TestSessionRepositoryRevokeByHash(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewSessionRepository(db)
	user := seedUserForTest(t, db, "person@example.com")

	seedSessionForTest(t, repo, user.ID, "hash-1", time.Now().Add(time.Hour))

	if err := repo.RevokeByHash("hash-1", "rotated"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := repo.FindValidByHash("hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session hidden, got %v", err)
	}

	var stored domain.Session
	if err := db.Where("refresh_token_hash = ?", "hash-1").First(&stored).Error; err != nil {
		t.Fatalf("load revoked session: %v", err)
	}
	if stored.RevokedAt == nil || stored.RevokeReason != "rotated" {
		t.Fatalf("expected revocation recorded, got %+v", stored)
	}
}

func TestSessionRepositoryRevokeByUserID(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewSessionRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	other := seedUserForTest(t, db, "other@example.com")

	for i := 0; i < 3; i++ {
		seedSessionForTest(t, repo, user.ID, fmt.Sprintf("hash-user-%d", i), time.Now().Add(time.Hour))
	}
	seedSessionForTest(t, repo, other.ID, "hash-other", time.Now().Add(time.Hour))

	if err := repo.RevokeByUserID(user.ID, "password_changed"); err != nil {
		t.Fatalf("revoke by user: %v", err)
	}

	var remaining int64
	if err := db.Model(&domain.Session{}).Where("user_id = ? AND revoked_at IS NULL", user.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all user sessions revoked, %d left", remaining)
	}
	if _, err := repo.FindValidByHash("hash-other"); err != nil {
		t.Fatalf("expected other user's session untouched: %v", err)
	}
}

func TestSessionRepositoryPurgeExpired(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewSessionRepository(db)
	user := seedUserForTest(t, db, "person@example.com")

	seedSessionForTest(t, repo, user.ID, "hash-live", time.Now().Add(time.Hour))
	seedSessionForTest(t, repo, user.ID, "hash-old-1", time.Now().Add(-time.Hour))
	seedSessionForTest(t, repo, user.ID, "hash-old-2", time.Now().Add(-2*time.Hour))

	purged, err := repo.PurgeExpired(time.Now())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 sessions purged, got %d", purged)
	}
	if _, err := repo.FindValidByHash("hash-live"); err != nil {
		t.Fatalf("expected live session to survive: %v", err)
	}
}
