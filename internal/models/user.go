package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleSuperAdmin = "superadmin"
	RoleOrgAdmin   = "org_admin"
)

type User struct {
	gorm.Model
	FirstName       string `gorm:"size:100"`
	LastName        string `gorm:"size:100"`
	HashedPassword  string
	Email           string `gorm:"uniqueIndex;size:255;not null"`
	Roles           string // multi-roles splitted by " "
	OrganizationID  *uint  `gorm:"index"`
	EmailVerifiedAt *time.Time
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil
}

func (u *User) HasRole(role string) bool {
	for _, r := range strings.Fields(u.Roles) {
		if r == role {
			return true
		}
	}
	return false
}
