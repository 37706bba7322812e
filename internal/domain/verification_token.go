package domain

import "time"

// Token purposes. A token is only ever valid for the purpose it was
// issued under.
const (
	TokenPurposePasswordReset = "password_reset"
	TokenPurposeEmailVerify   = "email_verify"
)

// VerificationToken stores the SHA-256 hash of a single-use purpose token.
// The raw value leaves the process only inside the notification email.
type VerificationToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Purpose   string     `gorm:"size:32;not null;index:idx_verification_tokens_purpose" json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
