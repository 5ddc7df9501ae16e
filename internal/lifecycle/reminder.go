package lifecycle

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/ecanizalez/orgreq/internal/mailer"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

// RegisterExpiryReminder schedules the daily sweep that nudges
// invitations about to expire. Expiry itself needs no sweep: dead
// tokens are filtered out at read time.
func RegisterExpiryReminder(scheduler gocron.Scheduler, e *Engine) {
	_, _ = scheduler.NewJob(
		gocron.CronJob(
			e.conf.ReminderCron,
			false,
		),
		gocron.NewTask(
			func() {
				if err := e.SendExpiryReminders(); err != nil {
					logger.Error().Err(err).Msg("expiry reminder sweep failed")
				}
			},
		),
	)
}

// SendExpiryReminders mails every open invitation expiring within the
// reminder window, at most once per invitation.
func (e *Engine) SendExpiryReminders() error {
	now := time.Now()
	deadline := now.AddDate(0, 0, e.conf.ReminderWindow)

	openIDs := e.statuses.ResolveAll([]models.StatusName{
		models.StatusSent,
		models.StatusCorrectionsNeeded,
	})

	items, err := storage.ListInvitationsExpiringBefore(e.db, openIDs, now, deadline)
	if err != nil {
		return err
	}

	reminded := 0
	for i := range items {
		inv := &items[i]

		already, err := storage.HasNotificationOfType(e.db, inv.ID, string(mailer.KindExpirationReminder))
		if err != nil {
			return err
		}
		if already {
			continue
		}

		daysLeft := int(time.Until(inv.ExpiresAt).Hours() / 24)
		data := mailer.Data{
			InvitationURL: e.invitationURL(inv.Token),
			ExpiresAt:     inv.ExpiresAt,
			DaysLeft:      daysLeft,
		}
		if inv.OrganizationData != nil {
			data.OrganizationName = inv.OrganizationData.Name
		}

		notification := &models.Notification{
			InvitationID:   inv.ID,
			MessageID:      uuid.NewString(),
			Type:           string(mailer.KindExpirationReminder),
			RecipientEmail: inv.Email,
			Content:        "Invitation expires " + inv.ExpiresAt.Format(time.DateOnly),
		}
		if err := storage.CreateNotification(e.db, notification); err != nil {
			return err
		}

		e.deliver(&outboundMail{
			NotificationID: notification.ID,
			Kind:           mailer.KindExpirationReminder,
			Recipient:      inv.Email,
			Data:           data,
		})
		reminded++
	}

	if reminded > 0 {
		logger.Info().Int("count", reminded).Msg("expiry reminders sent")
	}
	return nil
}
