package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/ecanizalez/orgreq/internal/cache"
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/mailer"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

type SendInvitationRequest struct {
	Email            string
	OrganizationName string
	ContactName      string
	ExpiresDays      int
	Message          string
}

// CreateInvitation is the reviewer-initiated entry point: a fresh
// invitation in status "sent" with minimal satellite data, delivered by
// email as a submission link.
func (e *Engine) CreateInvitation(ctx context.Context, caller Caller, req SendInvitationRequest) (*models.Invitation, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkmail.ValidateFormat(req.Email); err != nil {
		return nil, &ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if req.OrganizationName == "" {
		return nil, &ValidationError{Field: "organization_name", Reason: "required"}
	}
	req.ContactName = strings.TrimSpace(req.ContactName)
	if req.ContactName == "" {
		return nil, &ValidationError{Field: "contact_name", Reason: "required"}
	}
	if req.ExpiresDays == 0 {
		req.ExpiresDays = e.conf.ExpiryDays
	}
	if req.ExpiresDays < 1 || req.ExpiresDays > 365 {
		return nil, &ValidationError{Field: "expires_days", Reason: "must be between 1 and 365"}
	}

	now := time.Now()
	dup, err := storage.HasLiveInvitationForEmail(e.db, req.Email, e.liveStatusIDs(), now, 0)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, &ValidationError{Field: "email", Reason: "a live invitation already exists for this email"}
	}

	firstName, lastName := splitContactName(req.ContactName)

	inv := &models.Invitation{
		Email:     req.Email,
		Token:     NewToken(),
		StatusID:  e.statuses.MustResolve(models.StatusSent),
		ExpiresAt: now.AddDate(0, 0, req.ExpiresDays),
		CreatedBy: caller.UserID,
	}

	var mail *outboundMail
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txdb := &gormw.DB{DB: tx}

		if err := storage.CreateInvitation(txdb, inv); err != nil {
			return err
		}

		inv.OrganizationData = &models.InvitationOrganizationData{
			InvitationID: inv.ID,
			Name:         req.OrganizationName,
			Slug:         slug.Make(req.OrganizationName),
			Email:        req.Email,
		}
		if err := txdb.Create(inv.OrganizationData).Error; err != nil {
			return err
		}

		inv.AdminData = &models.InvitationAdminData{
			InvitationID: inv.ID,
			FirstName:    firstName,
			LastName:     lastName,
			Email:        req.Email,
		}
		if err := txdb.Create(inv.AdminData).Error; err != nil {
			return err
		}

		notification := &models.Notification{
			InvitationID:   inv.ID,
			MessageID:      uuid.NewString(),
			Type:           string(mailer.KindInvitationSent),
			RecipientEmail: req.Email,
			Content:        req.Message,
		}
		if err := storage.CreateNotification(txdb, notification); err != nil {
			return err
		}

		mail = &outboundMail{
			NotificationID: notification.ID,
			Kind:           mailer.KindInvitationSent,
			Recipient:      req.Email,
			Data: mailer.Data{
				OrganizationName: req.OrganizationName,
				ContactName:      req.ContactName,
				InvitationURL:    e.invitationURL(inv.Token),
				Message:          req.Message,
				ExpiresAt:        inv.ExpiresAt,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.InvalidatePrefix(cache.PrefixStats)
	e.deliver(mail)

	logger.Info().
		Uint("invitation_id", inv.ID).
		Str("email", req.Email).
		Uint("reviewer", caller.UserID).
		Msg("invitation sent")

	return inv, nil
}

type OrganizationSubmission struct {
	Name       string
	Slug       string
	WebsiteURL string
	Address    string
	Phone      string
	Email      string
}

type AdminSubmission struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type PublicRequest struct {
	Organization OrganizationSubmission
	Admin        AdminSubmission
}

// CreatePublicRequest handles an unsolicited request: the invitation is
// born directly in "pending" with full satellite data, awaiting review.
func (e *Engine) CreatePublicRequest(ctx context.Context, req PublicRequest) (*models.Invitation, error) {
	org, admin, err := normalizeSubmission(req.Organization, req.Admin)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.checkSubmissionUniqueness(org, admin, now, 0); err != nil {
		return nil, err
	}

	dup, err := storage.HasLiveInvitationForEmail(e.db, admin.Email, e.liveStatusIDs(), now, 0)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, &ValidationError{Field: "admin.email", Reason: "a live invitation already exists for this email"}
	}

	inv := &models.Invitation{
		Email:      admin.Email,
		Token:      NewToken(),
		StatusID:   e.statuses.MustResolve(models.StatusPending),
		ExpiresAt:  now.AddDate(0, 0, e.conf.ExpiryDays),
		AcceptedAt: &now,
	}

	var mail *outboundMail
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txdb := &gormw.DB{DB: tx}

		if err := storage.CreateInvitation(txdb, inv); err != nil {
			return err
		}

		org.InvitationID = inv.ID
		if err := txdb.Create(org).Error; err != nil {
			return err
		}
		inv.OrganizationData = org

		admin.InvitationID = inv.ID
		if err := txdb.Create(admin).Error; err != nil {
			return err
		}
		inv.AdminData = admin

		notification := &models.Notification{
			InvitationID:   inv.ID,
			MessageID:      uuid.NewString(),
			Type:           string(mailer.KindInvitationSent),
			RecipientEmail: admin.Email,
		}
		if err := storage.CreateNotification(txdb, notification); err != nil {
			return err
		}

		mail = &outboundMail{
			NotificationID: notification.ID,
			Kind:           mailer.KindInvitationSent,
			Recipient:      admin.Email,
			Data: mailer.Data{
				OrganizationName: org.Name,
				ContactName:      strings.TrimSpace(admin.FirstName + " " + admin.LastName),
				InvitationURL:    e.invitationURL(inv.Token),
				ExpiresAt:        inv.ExpiresAt,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.InvalidatePrefix(cache.PrefixStats)
	e.deliver(mail)

	logger.Info().
		Uint("invitation_id", inv.ID).
		Str("email", admin.Email).
		Msg("public organization request received")

	return inv, nil
}

func splitContactName(name string) (first, last string) {
	parts := strings.SplitN(name, " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}
