// Package requests exposes the organization request API: the reviewer
// surface under /api/admin and the tokened public surface under
// /api/public.
package requests

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/handlers/middleware"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

var (
	logger = log.With().Str("component", "requests").Logger()
)

type Handlers struct {
	db       *gormw.DB
	engine   *lifecycle.Engine
	statuses *storage.StatusRegistry
	auth     *middleware.Auth
}

func New(db *gormw.DB, engine *lifecycle.Engine, statuses *storage.StatusRegistry, auth *middleware.Auth) *Handlers {
	return &Handlers{
		db:       db,
		engine:   engine,
		statuses: statuses,
		auth:     auth,
	}
}

func (h *Handlers) RegisterHandlers(rg *gin.RouterGroup) {
	adminRoutes := rg.Group("/api/admin/requests")
	adminRoutes.Use(h.auth.RequireReviewer())
	{
		// Reviewer sends a fresh invitation.
		adminRoutes.POST("/invitations", h.createInvitation)
		// Review queue.
		adminRoutes.GET("", h.listRequests)
		adminRoutes.GET("/statistics", h.statistics)
		adminRoutes.GET("/:id", h.getRequest)
		// The only way a request's status ever changes.
		adminRoutes.PUT("/:id/status", h.updateStatus)
	}

	publicRoutes := rg.Group("/api/public/organization-requests")
	{
		// Unsolicited walk-in request.
		publicRoutes.POST("", h.createPublicRequest)
		// Tokened submission flow.
		publicRoutes.GET("/:token/verify", h.verifyToken)
		publicRoutes.POST("/:token", h.submit)
	}
}

// ---- JSON views ----

type organizationDataView struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	WebsiteURL string `json:"website_url,omitempty"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

type adminDataView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type invitationView struct {
	ID               uint                  `json:"id"`
	Email            string                `json:"email"`
	Status           models.StatusName     `json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
	ExpiresAt        time.Time             `json:"expires_at"`
	AcceptedAt       *time.Time            `json:"accepted_at,omitempty"`
	DecidedAt        *time.Time            `json:"decided_at,omitempty"`
	RejectedReason   string                `json:"rejected_reason,omitempty"`
	CorrectionsNotes string                `json:"corrections_notes,omitempty"`
	OrganizationID   *uint                 `json:"organization_id,omitempty"`
	Organization     *organizationDataView `json:"organization,omitempty"`
	Admin            *adminDataView        `json:"admin,omitempty"`
}

func (h *Handlers) invitationToView(inv *models.Invitation) *invitationView {
	v := &invitationView{
		ID:               inv.ID,
		Email:            inv.Email,
		Status:           h.statuses.Name(inv.StatusID),
		CreatedAt:        inv.CreatedAt,
		ExpiresAt:        inv.ExpiresAt,
		AcceptedAt:       inv.AcceptedAt,
		DecidedAt:        inv.DecidedAt,
		RejectedReason:   inv.RejectedReason,
		CorrectionsNotes: inv.CorrectionsNotes,
		OrganizationID:   inv.OrganizationID,
	}
	if inv.OrganizationData != nil {
		v.Organization = &organizationDataView{
			Name:       inv.OrganizationData.Name,
			Slug:       inv.OrganizationData.Slug,
			WebsiteURL: inv.OrganizationData.WebsiteURL,
			Address:    inv.OrganizationData.Address,
			Phone:      inv.OrganizationData.Phone,
			Email:      inv.OrganizationData.Email,
		}
	}
	if inv.AdminData != nil {
		v.Admin = &adminDataView{
			FirstName: inv.AdminData.FirstName,
			LastName:  inv.AdminData.LastName,
			Email:     inv.AdminData.Email,
			Phone:     inv.AdminData.Phone,
		}
	}
	return v
}
