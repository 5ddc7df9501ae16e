package models

import "gorm.io/gorm"

// InvitationOrganizationData holds the proposed organization profile of
// an invitation. Mutable while the invitation is still open, promoted
// to a live Organization on approval.
type InvitationOrganizationData struct {
	gorm.Model
	InvitationID uint   `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"size:255;not null"`
	Slug         string `gorm:"index;size:255;not null"`
	WebsiteURL   string `gorm:"size:255"`
	Address      string `gorm:"size:500"`
	Phone        string `gorm:"size:20"`
	Email        string `gorm:"size:255"`
}

// InvitationAdminData holds the proposed administrator profile of an
// invitation.
type InvitationAdminData struct {
	gorm.Model
	InvitationID uint   `gorm:"uniqueIndex;not null"`
	FirstName    string `gorm:"size:100;not null"`
	LastName     string `gorm:"size:100"`
	Email        string `gorm:"index;size:255;not null"`
	Phone        string `gorm:"size:20"`
}
