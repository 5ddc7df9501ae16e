package models

import (
	"time"

	"gorm.io/gorm"
)

// Invitation is the aggregate root of an organization-creation request.
// Status is only ever changed through the lifecycle engine.
type Invitation struct {
	gorm.Model
	Email    string `gorm:"index;size:255;not null"`
	Token    string `gorm:"uniqueIndex;size:64;not null"`
	StatusID uint   `gorm:"index;not null"`
	Status   InvitationStatus

	ExpiresAt  time.Time `gorm:"index;not null"`
	AcceptedAt *time.Time
	// DecidedAt is set once a reviewer approves, rejects or requests
	// corrections.
	DecidedAt *time.Time

	RejectedReason   string `gorm:"size:1000"`
	CorrectionsNotes string `gorm:"size:2000"`

	CreatedBy uint
	UpdatedBy uint

	// OrganizationID stays null until approval, then never changes.
	OrganizationID *uint

	OrganizationData *InvitationOrganizationData
	AdminData        *InvitationAdminData
}

// Expired reports whether the invitation token is past its expiry.
// Expiry is evaluated at access time; nothing sweeps rows to a
// different status.
func (i *Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
