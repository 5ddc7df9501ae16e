package models

import "gorm.io/gorm"

const OrganizationStatusActive = "active"

// Organization is a provisioned tenant. Created exactly once per
// approved invitation; AdminID points to the administrator user created
// in the same transaction.
type Organization struct {
	gorm.Model
	Name       string `gorm:"size:255;not null"`
	Slug       string `gorm:"uniqueIndex;size:255;not null"`
	WebsiteURL string `gorm:"size:255"`
	Address    string `gorm:"size:500"`
	Phone      string `gorm:"size:20"`
	Email      string `gorm:"size:255"`
	Status     string `gorm:"size:32;not null"`
	AdminID    *uint
	CreatedBy  uint
}
