package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arjunms/account-service/internal/domain"
)

func seedTokenForTest(t *testing.T, repo VerificationTokenRepository, userID uint, hash, purpose string, expiresAt time.Time) *domain.VerificationToken {
	t.Helper()
	token := &domain.VerificationToken{UserID: userID, TokenHash: hash, Purpose: purpose, ExpiresAt: expiresAt}
	if err := repo.Create(token); err != nil {
		t.Fatalf("seed token %s: %v", hash, err)
	}
	return token
}

func TestVerificationTokenRepositoryFindActive(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationTokenRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	now := time.Now().UTC()

	live := seedTokenForTest(t, repo, user.ID, "hash-live", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))
	seedTokenForTest(t, repo, user.ID, "hash-expired", domain.TokenPurposePasswordReset, now.Add(-time.Minute))

	found, err := repo.FindActiveByHashPurpose("hash-live", domain.TokenPurposePasswordReset, now)
	if err != nil {
		t.Fatalf("find live: %v", err)
	}
	if found.ID != live.ID {
		t.Fatalf("expected token %d, got %d", live.ID, found.ID)
	}

	if _, err := repo.FindActiveByHashPurpose("hash-expired", domain.TokenPurposePasswordReset, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected expired token hidden, got %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose("hash-live", domain.TokenPurposeEmailVerify, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected purpose mismatch hidden, got %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose("missing", domain.TokenPurposePasswordReset, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected unknown hash hidden, got %v", err)
	}
}

func TestVerificationTokenRepositoryInvalidateActiveByUserPurpose(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationTokenRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	other := seedUserForTest(t, db, "other@example.com")
	now := time.Now().UTC()

	seedTokenForTest(t, repo, user.ID, "hash-reset", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))
	seedTokenForTest(t, repo, user.ID, "hash-verify", domain.TokenPurposeEmailVerify, now.Add(15*time.Minute))
	seedTokenForTest(t, repo, other.ID, "hash-other", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))

	if err := repo.InvalidateActiveByUserPurpose(user.ID, domain.TokenPurposePasswordReset, now); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, err := repo.FindActiveByHashPurpose("hash-reset", domain.TokenPurposePasswordReset, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected invalidated token hidden, got %v", err)
	}
	// Other purposes and other users stay live.
	if _, err := repo.FindActiveByHashPurpose("hash-verify", domain.TokenPurposeEmailVerify, now); err != nil {
		t.Fatalf("expected verify token untouched: %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose("hash-other", domain.TokenPurposePasswordReset, now); err != nil {
		t.Fatalf("expected other user's token untouched: %v", err)
	}
}

func TestVerificationTokenRepositoryConsumeIsSingleUse(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationTokenRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	now := time.Now().UTC()

	token := seedTokenForTest(t, repo, user.ID, "hash-once", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))

	if err := repo.Consume(token.ID, user.ID, now); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := repo.Consume(token.ID, user.ID, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected second consume rejected, got %v", err)
	}
	if err := repo.Consume(999, user.ID, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected unknown token rejected, got %v", err)
	}
}

func TestVerificationTokenRepositoryConsumeRace(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationTokenRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	now := time.Now().UTC()

	token := seedTokenForTest(t, repo, user.ID, "hash-race", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Consume(token.ID, user.ID, now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestVerificationTokenRepositoryPurgeExpired(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationTokenRepository(db)
	user := seedUserForTest(t, db, "person@example.com")
	now := time.Now().UTC()

	seedTokenForTest(t, repo, user.ID, "hash-live", domain.TokenPurposePasswordReset, now.Add(15*time.Minute))
	seedTokenForTest(t, repo, user.ID, "hash-expired", domain.TokenPurposePasswordReset, now.Add(-time.Minute))
	used := seedTokenForTest(t, repo, user.ID, "hash-used", domain.TokenPurposeEmailVerify, now.Add(15*time.Minute))
	if err := repo.Consume(used.ID, user.ID, now); err != nil {
		t.Fatalf("consume: %v", err)
	}

	purged, err := repo.PurgeExpired(now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 rows purged, got %d", purged)
	}
	if _, err := repo.FindActiveByHashPurpose("hash-live", domain.TokenPurposePasswordReset, now); err != nil {
		t.Fatalf("expected live token to survive: %v", err)
	}
}
