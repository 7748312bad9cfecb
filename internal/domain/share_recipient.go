package domain

import (
	"github.com/google/uuid"
	"time"
)

type ShareRecipient struct {
	ID                int64      `json:"id" db:"id"`
	ShareLinkID       uuid.UUID  `json:"share_link_id" db:"share_link_id"`
	Email             string     `json:"email" db:"email"`
	VerificationToken string     `json:"-" db:"verification_token"`
	Verified          bool       `json:"verified" db:"verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
