package storage

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
)

var (
	logger = log.With().Str("component", "storage").Logger()
)

func CreateInvitation(db *gormw.DB, invitation *models.Invitation) error {
	return db.Create(invitation).Error
}

func GetInvitationByID(db *gormw.DB, id uint) (*models.Invitation, error) {
	res := &models.Invitation{}
	err := db.Preload("Status").
		Preload("OrganizationData").
		Preload("AdminData").
		First(res, id).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetLiveInvitationByToken resolves a token only while its invitation
// is in one of the given statuses and not expired. Anything else is a
// record-not-found to the caller; expired and unknown tokens are
// indistinguishable on purpose.
func GetLiveInvitationByToken(db *gormw.DB, token string, statusIDs []uint, now time.Time) (*models.Invitation, error) {
	res := &models.Invitation{}
	err := db.Preload("Status").
		Preload("OrganizationData").
		Preload("AdminData").
		Where("token = ? AND status_id IN ? AND expires_at > ?", token, statusIDs, now).
		First(res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

// HasLiveInvitationForEmail reports whether another non-expired
// invitation in one of the given statuses already targets this email.
func HasLiveInvitationForEmail(db *gormw.DB, email string, statusIDs []uint, now time.Time, excludeID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Invitation{}).
		Where("email = ? AND status_id IN ? AND expires_at > ? AND id <> ?", email, statusIDs, now, excludeID).
		Count(&count).Error
	return count > 0, err
}

// InvitationSlugInUse checks proposed-organization slugs of other live
// invitations.
func InvitationSlugInUse(db *gormw.DB, slug string, statusIDs []uint, now time.Time, excludeID uint) (bool, error) {
	live := db.Model(&models.Invitation{}).
		Select("id").
		Where("status_id IN ? AND expires_at > ? AND id <> ?", statusIDs, now, excludeID)

	var count int64
	err := db.Model(&models.InvitationOrganizationData{}).
		Where("slug = ? AND invitation_id IN (?)", slug, live).
		Count(&count).Error
	return count > 0, err
}

// InvitationAdminEmailInUse checks proposed-administrator emails of
// other live invitations.
func InvitationAdminEmailInUse(db *gormw.DB, email string, statusIDs []uint, now time.Time, excludeID uint) (bool, error) {
	live := db.Model(&models.Invitation{}).
		Select("id").
		Where("status_id IN ? AND expires_at > ? AND id <> ?", statusIDs, now, excludeID)

	var count int64
	err := db.Model(&models.InvitationAdminData{}).
		Where("email = ? AND invitation_id IN (?)", email, live).
		Count(&count).Error
	return count > 0, err
}

// UpdateInvitationStatusGuarded performs the conditional status write:
// the UPDATE only matches while the row still carries fromStatusID, so
// a concurrent transition that committed first makes this report false
// and the caller's transaction must roll back.
func UpdateInvitationStatusGuarded(db *gormw.DB, id, fromStatusID uint, updates map[string]any) (bool, error) {
	res := db.Model(&models.Invitation{}).
		Where("id = ? AND status_id = ?", id, fromStatusID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetInvitationOrganization links the provisioned organization after
// the status claim succeeded.
func SetInvitationOrganization(db *gormw.DB, id, organizationID uint) error {
	return db.Model(&models.Invitation{}).
		Where("id = ?", id).
		Update("organization_id", organizationID).Error
}

type InvitationFilter struct {
	StatusID  *uint
	Search    string
	Page      int
	PerPage   int
	SortBy    string // created_at or updated_at
	SortOrder string // asc or desc
}

type InvitationPage struct {
	Items   []models.Invitation
	Total   int64
	Page    int
	PerPage int
}

// ListInvitations returns a filtered, paginated page of invitations,
// newest first by default. Always served fresh; the request list is too
// mutable to cache.
func ListInvitations(db *gormw.DB, f InvitationFilter) (*InvitationPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 15
	}

	q := db.Model(&models.Invitation{})

	if f.StatusID != nil {
		q = q.Where("status_id = ?", *f.StatusID)
	}

	if f.Search != "" {
		like := "%" + f.Search + "%"
		orgMatch := db.Model(&models.InvitationOrganizationData{}).
			Select("invitation_id").
			Where("name LIKE ? OR slug LIKE ? OR email LIKE ?", like, like, like)
		adminMatch := db.Model(&models.InvitationAdminData{}).
			Select("invitation_id").
			Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
		q = q.Where("email LIKE ? OR id IN (?) OR id IN (?)", like, orgMatch, adminMatch)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	sortBy := f.SortBy
	if sortBy != "created_at" && sortBy != "updated_at" {
		sortBy = "created_at"
	}
	sortOrder := f.SortOrder
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	var items []models.Invitation
	err := q.Preload("Status").
		Preload("OrganizationData").
		Preload("AdminData").
		Order(sortBy + " " + sortOrder).
		Limit(f.PerPage).
		Offset((f.Page - 1) * f.PerPage).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &InvitationPage{
		Items:   items,
		Total:   total,
		Page:    f.Page,
		PerPage: f.PerPage,
	}, nil
}

// ListInvitationsExpiringBefore returns non-expired invitations in the
// given statuses whose expiry falls before the deadline. Used by the
// reminder job.
func ListInvitationsExpiringBefore(db *gormw.DB, statusIDs []uint, now, deadline time.Time) ([]models.Invitation, error) {
	var items []models.Invitation
	err := db.Preload("Status").
		Preload("OrganizationData").
		Where("status_id IN ? AND expires_at > ? AND expires_at <= ?", statusIDs, now, deadline).
		Find(&items).Error
	return items, err
}

// CountInvitationsByStatus returns row counts keyed by status id.
func CountInvitationsByStatus(db *gormw.DB) (map[uint]int64, error) {
	type row struct {
		StatusID uint
		N        int64
	}
	var rows []row
	err := db.Model(&models.Invitation{}).
		Select("status_id, count(*) as n").
		Group("status_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.StatusID] = r.N
	}
	return counts, nil
}

// DecisionDurations returns creation-to-decision durations of all
// decided invitations. Averaging happens in Go to stay portable across
// sqlite and postgres.
func DecisionDurations(db *gormw.DB) ([]time.Duration, error) {
	type row struct {
		CreatedAt time.Time
		DecidedAt time.Time
	}
	var rows []row
	err := db.Model(&models.Invitation{}).
		Select("created_at, decided_at").
		Where("decided_at IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	durations := make([]time.Duration, 0, len(rows))
	for _, r := range rows {
		durations = append(durations, r.DecidedAt.Sub(r.CreatedAt))
	}
	return durations, nil
}

// ListInvitationCreationTimes returns the created_at stamps since the
// given instant. Month bucketing happens in Go; sqlite and postgres
// disagree on date formatting functions.
func ListInvitationCreationTimes(db *gormw.DB, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := db.Model(&models.Invitation{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}
