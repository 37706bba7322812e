package domain

import "time"

// LocalCredential is the single password credential a user may hold.
// FailedAccessCount and LockoutUntil track the lockout state for local
// password logins; external-identity logins never touch them.
type LocalCredential struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	PasswordHash      string     `gorm:"size:1024;not null" json:"-"`
	EmailVerified     bool       `gorm:"not null;default:false" json:"email_verified"`
	EmailVerifiedAt   *time.Time `json:"email_verified_at,omitempty"`
	FailedAccessCount int        `gorm:"not null;default:0" json:"-"`
	LockoutUntil      *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (c *LocalCredential) LockedOut(now time.Time) bool {
	return c.LockoutUntil != nil && c.LockoutUntil.After(now)
}
