package model

import "time"

// AuthToken is a single-use reset or verification token. Only the
// sha256 fingerprint of the raw token is ever stored here, the raw
// value lives exclusively in the link mailed to the user.
//
// The (owner_id, purpose) unique index is what makes re-issuance an
// overwrite: there's never more than one live token per owner and
// purpose.
type AuthToken struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	OwnerID     string `gorm:"uniqueIndex:idx_auth_tokens_owner_purpose;not null"`
	Purpose     string `gorm:"uniqueIndex:idx_auth_tokens_owner_purpose;not null"`
	Fingerprint string `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
