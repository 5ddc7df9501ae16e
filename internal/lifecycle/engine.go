// Package lifecycle implements the invitation lifecycle state machine:
// legal transitions, their transactional side effects, and the public
// token submission path. Status is never written from anywhere else.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ecanizalez/orgreq/internal/cache"
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/mailer"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

var (
	logger = log.With().Str("component", "lifecycle").Logger()
)

// Action is a reviewer decision on an open invitation.
type Action string

const (
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionRequestCorrections Action = "request_corrections"
)

var (
	// Statuses whose token is still usable for public access.
	liveStatuses = set.From([]models.StatusName{
		models.StatusSent,
		models.StatusPending,
		models.StatusCorrectionsNeeded,
	})

	// Legal source states for every reviewer action. approved and
	// rejected are terminal; sent has not been submitted yet.
	transitionSources = set.From([]models.StatusName{
		models.StatusPending,
		models.StatusCorrectionsNeeded,
	})
)

const maxCorrectionsNotesLen = 2000

type Config struct {
	// InvitationBaseURL is the public submission page; the token is
	// appended as the last path segment.
	InvitationBaseURL string `yaml:"invitation_base_url"`
	LoginURL          string `yaml:"login_url"`
	ExpiryDays        int    `yaml:"expiry_days"`
	ReminderWindow    int    `yaml:"reminder_window_days"`
	ReminderCron      string `yaml:"reminder_cron"`
}

func (c *Config) ApplyDefaults() {
	if c.ExpiryDays <= 0 {
		c.ExpiryDays = 7
	}
	if c.ReminderWindow <= 0 {
		c.ReminderWindow = 2
	}
	if c.ReminderCron == "" {
		// 8am daily
		c.ReminderCron = "0 8 * * *"
	}
}

// Caller identifies the already-authorized reviewer invoking a
// privileged operation. Authentication and privilege checks happen
// before the engine; the engine does not re-derive them.
type Caller struct {
	UserID uint
}

type Engine struct {
	db       *gormw.DB
	statuses *storage.StatusRegistry
	sender   mailer.Sender
	cache    *cache.Cache
	conf     Config
}

func New(conf Config, db *gormw.DB, statuses *storage.StatusRegistry, sender mailer.Sender, c *cache.Cache) *Engine {
	conf.ApplyDefaults()
	return &Engine{
		db:       db,
		statuses: statuses,
		sender:   sender,
		cache:    c,
		conf:     conf,
	}
}

type TransitionRequest struct {
	Action           Action
	Message          string
	CorrectionsNotes string
}

type TransitionResult struct {
	InvitationID   uint
	Status         models.StatusName
	DecidedAt      time.Time
	OrganizationID *uint
	AdminUserID    *uint
}

// outboundMail is a send deferred until after commit, so a transport
// failure can never roll back a committed decision.
type outboundMail struct {
	NotificationID uint
	Kind           mailer.Kind
	Recipient      string
	Data           mailer.Data
}

// Transition applies one reviewer action to an invitation. The status
// claim, provisioning and notification row all commit or roll back
// together; the email runs after commit. The guarded status claim runs
// before provisioning, so the loser of a concurrent decision gets an
// InvalidTransitionError rather than a provisioning failure.
func (e *Engine) Transition(ctx context.Context, caller Caller, invitationID uint, req TransitionRequest) (*TransitionResult, error) {
	switch req.Action {
	case ActionApprove, ActionReject:
	case ActionRequestCorrections:
		notes := strings.TrimSpace(req.CorrectionsNotes)
		if notes == "" {
			return nil, &ValidationError{Field: "corrections_notes", Reason: "required for request_corrections"}
		}
		if len(notes) > maxCorrectionsNotesLen {
			return nil, &ValidationError{Field: "corrections_notes", Reason: "too long"}
		}
		req.CorrectionsNotes = notes
	default:
		return nil, &ValidationError{Field: "action", Reason: "must be approve, reject or request_corrections"}
	}

	var (
		result *TransitionResult
		mail   *outboundMail
	)

	err := retryOnBusy(func() error {
		var txErr error
		result, mail, txErr = e.transitionTx(ctx, caller, invitationID, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	e.cache.InvalidateInvitation(invitationID)
	if result.OrganizationID != nil {
		e.cache.InvalidateOrganization(*result.OrganizationID)
	}
	if result.AdminUserID != nil {
		e.cache.InvalidateUser(*result.AdminUserID)
	}

	e.deliver(mail)

	logger.Info().
		Uint("invitation_id", invitationID).
		Str("action", string(req.Action)).
		Str("status", string(result.Status)).
		Uint("reviewer", caller.UserID).
		Msg("invitation transition committed")

	return result, nil
}

func (e *Engine) transitionTx(ctx context.Context, caller Caller, invitationID uint, req TransitionRequest) (*TransitionResult, *outboundMail, error) {
	var (
		result *TransitionResult
		mail   *outboundMail
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txdb := &gormw.DB{DB: tx}

		inv, err := storage.GetInvitationByID(txdb, invitationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		from := e.statuses.Name(inv.StatusID)
		if !transitionSources.Contains(from) {
			return &InvalidTransitionError{From: from, Action: req.Action}
		}

		now := time.Now()
		updates := map[string]any{
			"decided_at": now,
			"updated_by": caller.UserID,
		}

		var kind mailer.Kind
		var content string
		data := mailer.Data{Message: req.Message}
		if inv.OrganizationData != nil {
			data.OrganizationName = inv.OrganizationData.Name
		}
		if inv.AdminData != nil {
			data.ContactName = strings.TrimSpace(inv.AdminData.FirstName + " " + inv.AdminData.LastName)
		}

		result = &TransitionResult{InvitationID: inv.ID, DecidedAt: now}

		switch req.Action {
		case ActionApprove:
			updates["status_id"] = e.statuses.MustResolve(models.StatusApproved)
			updates["accepted_at"] = now

			kind = mailer.KindApproved
			result.Status = models.StatusApproved

		case ActionReject:
			reason := req.Message
			if reason == "" {
				reason = "Your organization request has been rejected."
			}
			updates["status_id"] = e.statuses.MustResolve(models.StatusRejected)
			updates["rejected_reason"] = reason

			kind = mailer.KindRejected
			content = reason
			data.RejectedReason = reason

			result.Status = models.StatusRejected

		case ActionRequestCorrections:
			updates["status_id"] = e.statuses.MustResolve(models.StatusCorrectionsNeeded)
			updates["corrections_notes"] = req.CorrectionsNotes

			kind = mailer.KindCorrections
			content = req.CorrectionsNotes
			data.CorrectionsNotes = req.CorrectionsNotes
			// Same token as before; tokens are never reissued.
			data.InvitationURL = e.invitationURL(inv.Token)

			result.Status = models.StatusCorrectionsNeeded
		}

		// Claim the status row before any side effects. The loser of a
		// concurrent decision sees its stale precondition here instead
		// of tripping over the winner's half-provisioned rows.
		ok, err := storage.UpdateInvitationStatusGuarded(txdb, inv.ID, inv.StatusID, updates)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidTransitionError{From: from, Action: req.Action}
		}

		if req.Action == ActionApprove {
			org, admin, tempPassword, err := e.provision(txdb, caller, inv)
			if err != nil {
				return err
			}
			if err := storage.SetInvitationOrganization(txdb, inv.ID, org.ID); err != nil {
				return err
			}

			content = req.Message
			if content == "" {
				content = "Your organization request has been approved."
			}
			data.LoginURL = e.conf.LoginURL
			data.TempPassword = tempPassword

			result.OrganizationID = &org.ID
			result.AdminUserID = &admin.ID
		}

		recipient := inv.Email
		if inv.AdminData != nil && inv.AdminData.Email != "" {
			recipient = inv.AdminData.Email
		}

		notification := &models.Notification{
			InvitationID:   inv.ID,
			MessageID:      uuid.NewString(),
			Type:           string(kind),
			RecipientEmail: recipient,
			Content:        content,
		}
		if err := storage.CreateNotification(txdb, notification); err != nil {
			return err
		}

		mail = &outboundMail{
			NotificationID: notification.ID,
			Kind:           kind,
			Recipient:      recipient,
			Data:           data,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, mail, nil
}

// provision creates the Organization and its administrator from the
// satellite data. Runs inside the transition transaction; any error
// here rolls the whole transition back.
func (e *Engine) provision(txdb *gormw.DB, caller Caller, inv *models.Invitation) (*models.Organization, *models.User, string, error) {
	orgData := inv.OrganizationData
	adminData := inv.AdminData
	if orgData == nil || adminData == nil {
		return nil, nil, "", &ProvisioningError{Reason: "invitation has no submitted data"}
	}

	slugTaken, err := storage.OrganizationSlugExists(txdb, orgData.Slug)
	if err != nil {
		return nil, nil, "", &ProvisioningError{Reason: "slug lookup failed", Err: err}
	}
	if slugTaken {
		return nil, nil, "", &ProvisioningError{Reason: "organization slug already in use"}
	}

	if _, err := storage.GetUserByEmail(txdb, adminData.Email); err == nil {
		return nil, nil, "", &ProvisioningError{Reason: "administrator email already in use"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, "", &ProvisioningError{Reason: "email lookup failed", Err: err}
	}

	org := &models.Organization{
		Name:       orgData.Name,
		Slug:       orgData.Slug,
		WebsiteURL: orgData.WebsiteURL,
		Address:    orgData.Address,
		Phone:      orgData.Phone,
		Email:      orgData.Email,
		Status:     models.OrganizationStatusActive,
		CreatedBy:  caller.UserID,
	}
	if err := storage.CreateOrganization(txdb, org); err != nil {
		return nil, nil, "", &ProvisioningError{Reason: "failed to create organization", Err: err}
	}

	tempPassword := NewTempPassword()
	hashed, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, "", &ProvisioningError{Reason: "failed to hash credential", Err: err}
	}

	now := time.Now()
	admin := &models.User{
		FirstName:       adminData.FirstName,
		LastName:        adminData.LastName,
		Email:           adminData.Email,
		HashedPassword:  string(hashed),
		Roles:           models.RoleOrgAdmin,
		OrganizationID:  &org.ID,
		EmailVerifiedAt: &now,
	}
	if err := storage.CreateUser(txdb, admin); err != nil {
		return nil, nil, "", &ProvisioningError{Reason: "failed to create administrator", Err: err}
	}

	if err := storage.SetOrganizationAdmin(txdb, org.ID, admin.ID); err != nil {
		return nil, nil, "", &ProvisioningError{Reason: "failed to link administrator", Err: err}
	}
	org.AdminID = &admin.ID

	return org, admin, tempPassword, nil
}

// deliver runs the post-commit email attempt. On acceptance the
// notification row gets its sent_at stamp; on failure the null sent_at
// stays as the delivery-gap marker.
func (e *Engine) deliver(mail *outboundMail) {
	if mail == nil {
		return
	}

	if !e.sender.Send(mail.Kind, mail.Recipient, mail.Data) {
		logger.Warn().
			Uint("notification_id", mail.NotificationID).
			Str("kind", string(mail.Kind)).
			Str("recipient", mail.Recipient).
			Msg("notification delivery failed, sent_at left null for follow-up")
		return
	}

	if err := storage.MarkNotificationSent(e.db, mail.NotificationID); err != nil {
		logger.Error().Err(err).
			Uint("notification_id", mail.NotificationID).
			Msg("failed to mark notification sent")
	}
}

const busyRetries = 5

// retryOnBusy reruns a transaction that lost a write-lock race. On
// postgres a guarded update blocks on the competing row lock and
// re-evaluates its predicate after commit, but sqlite hands the losing
// transaction SQLITE_BUSY instead. Rerunning re-reads the row, so the
// lost race resolves into the ordinary stale-precondition answer.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 1; attempt <= busyRetries; attempt++ {
		err = fn()
		if !isLockBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return err
}

func isLockBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (e *Engine) invitationURL(token string) string {
	return strings.TrimRight(e.conf.InvitationBaseURL, "/") + "/" + token
}

func (e *Engine) liveStatusIDs() []uint {
	return e.statuses.ResolveAll(liveStatuses.Slice())
}
