package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification is one row per outbound message attempt, appended before
// the transport is asked to deliver. SentAt stays null until the
// transport accepts the message, so a null SentAt on an old row marks a
// delivery gap for manual follow-up.
type Notification struct {
	gorm.Model
	InvitationID   uint   `gorm:"index;not null"`
	MessageID      string `gorm:"size:36;not null"`
	Type           string `gorm:"index;size:64;not null"`
	RecipientEmail string `gorm:"size:255;not null"`
	Content        string `gorm:"size:2000"`
	SentAt         *time.Time
}
