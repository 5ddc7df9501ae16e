package storage

import (
	"time"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
)

func CreateNotification(db *gormw.DB, n *models.Notification) error {
	return db.Create(n).Error
}

// MarkNotificationSent stamps sent_at once the transport accepted the
// message. Rows are never deleted; the null/non-null split is the audit
// trail between attempted and confirmed.
func MarkNotificationSent(db *gormw.DB, id uint) error {
	now := time.Now()
	return db.Model(&models.Notification{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", &now).Error
}

func HasNotificationOfType(db *gormw.DB, invitationID uint, typ string) (bool, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("invitation_id = ? AND type = ?", invitationID, typ).
		Count(&count).Error
	return count > 0, err
}

func ListNotificationsForInvitation(db *gormw.DB, invitationID uint) ([]models.Notification, error) {
	var items []models.Notification
	err := db.Where("invitation_id = ?", invitationID).
		Order("created_at asc").
		Find(&items).Error
	return items, err
}
