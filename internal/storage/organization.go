package storage

import (
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
)

func CreateOrganization(db *gormw.DB, org *models.Organization) error {
	return db.Create(org).Error
}

func GetOrganizationByID(db *gormw.DB, id uint) (*models.Organization, error) {
	org := &models.Organization{}
	if err := db.First(org, id).Error; err != nil {
		return nil, err
	}
	return org, nil
}

// SetOrganizationAdmin links the freshly provisioned administrator back
// to the organization. Must run in the same transaction that created
// both rows.
func SetOrganizationAdmin(db *gormw.DB, orgID, userID uint) error {
	return db.Model(&models.Organization{}).
		Where("id = ?", orgID).
		Update("admin_id", userID).Error
}

func OrganizationSlugExists(db *gormw.DB, slug string) (bool, error) {
	var count int64
	err := db.Model(&models.Organization{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}
