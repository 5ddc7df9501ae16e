package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

type TokenInfo struct {
	Email     string
	ExpiresAt time.Time
	IsExpired bool
}

// VerifyToken resolves a capability token. Unknown, expired and
// already-decided tokens are all the same ErrNotFound; an
// unauthenticated caller learns nothing about which it was.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*TokenInfo, error) {
	now := time.Now()
	inv, err := storage.GetLiveInvitationByToken(&gormw.DB{DB: e.db.WithContext(ctx)}, token, e.liveStatusIDs(), now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &TokenInfo{
		Email:     inv.Email,
		ExpiresAt: inv.ExpiresAt,
		IsExpired: inv.Expired(now),
	}, nil
}

type SubmissionRequest struct {
	Organization OrganizationSubmission
	Admin        AdminSubmission
}

type SubmissionResult struct {
	InvitationID uint
	Status       models.StatusName
}

// Submit stores or refreshes the satellite data behind a token. From
// "sent" or "corrections_needed" the invitation moves to "pending" and
// gets its accepted_at stamp; submitting while already "pending" only
// refreshes the data.
func (e *Engine) Submit(ctx context.Context, token string, req SubmissionRequest) (*SubmissionResult, error) {
	org, admin, err := normalizeSubmission(req.Organization, req.Admin)
	if err != nil {
		return nil, err
	}

	var result *SubmissionResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txdb := &gormw.DB{DB: tx}

		now := time.Now()
		inv, err := storage.GetLiveInvitationByToken(txdb, token, e.liveStatusIDs(), now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := e.checkSubmissionUniquenessTx(txdb, org, admin, now, inv.ID); err != nil {
			return err
		}

		// Upsert the satellites, keyed by invitation id.
		org.InvitationID = inv.ID
		if inv.OrganizationData != nil {
			org.ID = inv.OrganizationData.ID
			org.CreatedAt = inv.OrganizationData.CreatedAt
			if err := txdb.Save(org).Error; err != nil {
				return err
			}
		} else if err := txdb.Create(org).Error; err != nil {
			return err
		}

		admin.InvitationID = inv.ID
		if inv.AdminData != nil {
			admin.ID = inv.AdminData.ID
			admin.CreatedAt = inv.AdminData.CreatedAt
			if err := txdb.Save(admin).Error; err != nil {
				return err
			}
		} else if err := txdb.Create(admin).Error; err != nil {
			return err
		}

		status := e.statuses.Name(inv.StatusID)
		if status == models.StatusSent || status == models.StatusCorrectionsNeeded {
			ok, err := storage.UpdateInvitationStatusGuarded(txdb, inv.ID, inv.StatusID, map[string]any{
				"status_id":   e.statuses.MustResolve(models.StatusPending),
				"accepted_at": now,
			})
			if err != nil {
				return err
			}
			if !ok {
				// The invitation changed under us; the public caller
				// gets the same vague answer as a dead token.
				return ErrNotFound
			}
			status = models.StatusPending
		}

		result = &SubmissionResult{InvitationID: inv.ID, Status: status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.InvalidateInvitation(result.InvitationID)

	logger.Info().
		Uint("invitation_id", result.InvitationID).
		Str("status", string(result.Status)).
		Msg("public submission stored")

	return result, nil
}

// normalizeSubmission trims, lowercases and validates the proposed
// organization and administrator payloads.
func normalizeSubmission(org OrganizationSubmission, admin AdminSubmission) (*models.InvitationOrganizationData, *models.InvitationAdminData, error) {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return nil, nil, &ValidationError{Field: "organization.name", Reason: "required"}
	}
	if len(org.Name) > 255 {
		return nil, nil, &ValidationError{Field: "organization.name", Reason: "too long"}
	}

	org.Slug = strings.TrimSpace(org.Slug)
	if org.Slug == "" {
		org.Slug = slug.Make(org.Name)
	}
	if !slugRegex.MatchString(org.Slug) {
		return nil, nil, &ValidationError{Field: "organization.slug", Reason: "must contain only lowercase letters, digits and dashes"}
	}

	org.Email = strings.ToLower(strings.TrimSpace(org.Email))
	if org.Email != "" {
		if err := checkmail.ValidateFormat(org.Email); err != nil {
			return nil, nil, &ValidationError{Field: "organization.email", Reason: "not a valid email address"}
		}
	}

	admin.FirstName = strings.TrimSpace(admin.FirstName)
	if admin.FirstName == "" {
		return nil, nil, &ValidationError{Field: "admin.first_name", Reason: "required"}
	}
	admin.LastName = strings.TrimSpace(admin.LastName)

	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	if err := checkmail.ValidateFormat(admin.Email); err != nil {
		return nil, nil, &ValidationError{Field: "admin.email", Reason: "not a valid email address"}
	}

	return &models.InvitationOrganizationData{
			Name:       org.Name,
			Slug:       org.Slug,
			WebsiteURL: org.WebsiteURL,
			Address:    org.Address,
			Phone:      org.Phone,
			Email:      org.Email,
		}, &models.InvitationAdminData{
			FirstName: admin.FirstName,
			LastName:  admin.LastName,
			Email:     admin.Email,
			Phone:     admin.Phone,
		}, nil
}

// checkSubmissionUniqueness probes the proposed slug and email against
// live organizations/users and against other live invitations'
// satellite data. Collisions are caller-correctable.
func (e *Engine) checkSubmissionUniqueness(org *models.InvitationOrganizationData, admin *models.InvitationAdminData, now time.Time, excludeID uint) error {
	return e.checkSubmissionUniquenessTx(e.db, org, admin, now, excludeID)
}

func (e *Engine) checkSubmissionUniquenessTx(db *gormw.DB, org *models.InvitationOrganizationData, admin *models.InvitationAdminData, now time.Time, excludeID uint) error {
	taken, err := storage.OrganizationSlugExists(db, org.Slug)
	if err != nil {
		return err
	}
	if taken {
		return &ValidationError{Field: "organization.slug", Reason: "already in use"}
	}

	taken, err = storage.InvitationSlugInUse(db, org.Slug, e.liveStatusIDs(), now, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return &ValidationError{Field: "organization.slug", Reason: "already requested by another invitation"}
	}

	taken, err = storage.UserEmailExists(db, admin.Email)
	if err != nil {
		return err
	}
	if taken {
		return &ValidationError{Field: "admin.email", Reason: "already in use"}
	}

	taken, err = storage.InvitationAdminEmailInUse(db, admin.Email, e.liveStatusIDs(), now, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return &ValidationError{Field: "admin.email", Reason: "already requested by another invitation"}
	}

	return nil
}
