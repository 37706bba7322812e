package domain

import "time"

const ExternalProviderGoogle = "google"

// ExternalIdentity maps a third-party (provider, subject) assertion to a
// local user. The composite unique index serializes concurrent link
// attempts for the same provider identity at the database.
type ExternalIdentity struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Provider      string    `gorm:"size:64;not null;uniqueIndex:idx_external_identities_provider_subject" json:"provider"`
	SubjectID     string    `gorm:"size:255;not null;uniqueIndex:idx_external_identities_provider_subject" json:"subject_id"`
	Email         string    `gorm:"size:255" json:"email"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	LinkedAt      time.Time `json:"linked_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
