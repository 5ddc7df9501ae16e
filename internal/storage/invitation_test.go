package storage

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlog "gorm.io/gorm/logger"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
)

func setupTestDB(t *testing.T) (*gormw.DB, *StatusRegistry) {
	t.Helper()
	db, err := gormw.Open(&gormw.Config{
		LogLevel: gormlog.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	require.NoError(t, SeedStatuses(db))

	statuses, err := LoadStatusRegistry(db)
	require.NoError(t, err)
	return db, statuses
}

func seedInvitation(t *testing.T, db *gormw.DB, statuses *StatusRegistry, email string, status models.StatusName) *models.Invitation {
	t.Helper()
	inv := &models.Invitation{
		Email:     email,
		Token:     "token-" + email,
		StatusID:  statuses.MustResolve(status),
		ExpiresAt: time.Now().AddDate(0, 0, 7),
	}
	require.NoError(t, CreateInvitation(db, inv))
	return inv
}

func TestSetInvitationOrganization(t *testing.T) {
	db, statuses := setupTestDB(t)

	inv := seedInvitation(t, db, statuses, "ada@acme.test", models.StatusApproved)
	require.NoError(t, SetInvitationOrganization(db, inv.ID, 7))

	got, err := GetInvitationByID(db, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OrganizationID)
	assert.Equal(t, uint(7), *got.OrganizationID)
}

func TestGetLiveInvitationByToken_FiltersExpiredAndTerminal(t *testing.T) {
	db, statuses := setupTestDB(t)
	now := time.Now()
	liveIDs := statuses.ResolveAll([]models.StatusName{models.StatusSent, models.StatusPending})

	live := seedInvitation(t, db, statuses, "live@acme.test", models.StatusSent)

	expired := seedInvitation(t, db, statuses, "expired@acme.test", models.StatusSent)
	require.NoError(t, db.Model(expired).Update("expires_at", now.AddDate(0, 0, -1)).Error)

	rejected := seedInvitation(t, db, statuses, "rejected@acme.test", models.StatusRejected)

	_, err := GetLiveInvitationByToken(db, live.Token, liveIDs, now)
	assert.NoError(t, err)

	_, err = GetLiveInvitationByToken(db, expired.Token, liveIDs, now)
	assert.Error(t, err)

	_, err = GetLiveInvitationByToken(db, rejected.Token, liveIDs, now)
	assert.Error(t, err)
}

func TestUpdateInvitationStatusGuarded(t *testing.T) {
	db, statuses := setupTestDB(t)

	inv := seedInvitation(t, db, statuses, "ada@acme.test", models.StatusPending)
	approvedID := statuses.MustResolve(models.StatusApproved)

	ok, err := UpdateInvitationStatusGuarded(db, inv.ID, inv.StatusID, map[string]any{
		"status_id": approvedID,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Same precondition again: the row moved on, nothing matches.
	ok, err = UpdateInvitationStatusGuarded(db, inv.ID, inv.StatusID, map[string]any{
		"status_id": statuses.MustResolve(models.StatusRejected),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := GetInvitationByID(db, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, approvedID, fresh.StatusID)
}

func TestListInvitations_PaginationAndSort(t *testing.T) {
	db, statuses := setupTestDB(t)

	for i := 0; i < 25; i++ {
		seedInvitation(t, db, statuses, "user"+strconv.Itoa(i)+"@acme.test", models.StatusSent)
	}

	page, err := ListInvitations(db, InvitationFilter{Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 2, page.Page)

	// Out-of-range values fall back to defaults.
	page, err = ListInvitations(db, InvitationFilter{Page: -1, PerPage: 1000, SortBy: "email; drop table", SortOrder: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 15)
}

func TestListInvitations_SearchSatelliteData(t *testing.T) {
	db, statuses := setupTestDB(t)

	inv := seedInvitation(t, db, statuses, "contact@acme.test", models.StatusPending)
	require.NoError(t, db.Create(&models.InvitationOrganizationData{
		InvitationID: inv.ID,
		Name:         "Acme Corp",
		Slug:         "acme-corp",
	}).Error)

	other := seedInvitation(t, db, statuses, "someone@other.test", models.StatusPending)
	require.NoError(t, db.Create(&models.InvitationAdminData{
		InvitationID: other.ID,
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@other.test",
	}).Error)

	page, err := ListInvitations(db, InvitationFilter{Search: "acme corp"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, inv.ID, page.Items[0].ID)

	page, err = ListInvitations(db, InvitationFilter{Search: "hopper"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, other.ID, page.Items[0].ID)
}

func TestNotificationAuditTrail(t *testing.T) {
	db, statuses := setupTestDB(t)

	inv := seedInvitation(t, db, statuses, "ada@acme.test", models.StatusSent)

	n := &models.Notification{
		InvitationID:   inv.ID,
		MessageID:      "msg-1",
		Type:           "invitation_sent",
		RecipientEmail: inv.Email,
	}
	require.NoError(t, CreateNotification(db, n))
	assert.Nil(t, n.SentAt)

	has, err := HasNotificationOfType(db, inv.ID, "invitation_sent")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, MarkNotificationSent(db, n.ID))

	items, err := ListNotificationsForInvitation(db, inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].SentAt)
}

func TestUserLookups(t *testing.T) {
	db, _ := setupTestDB(t)

	require.NoError(t, CreateUser(db, &models.User{
		Email:          "ada@acme.test",
		HashedPassword: "x",
		Roles:          models.RoleOrgAdmin,
	}))

	user, err := GetUserByEmail(db, "ada@acme.test")
	require.NoError(t, err)
	assert.True(t, user.HasRole(models.RoleOrgAdmin))

	exists, err := UserEmailExists(db, "ada@acme.test")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = UserEmailExists(db, "nobody@acme.test")
	require.NoError(t, err)
	assert.False(t, exists)
}
