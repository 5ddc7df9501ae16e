package requests

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecanizalez/orgreq/internal/handlers/middleware"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

type createInvitationParams struct {
	Email            string `json:"email" binding:"required"`
	OrganizationName string `json:"organization_name" binding:"required"`
	ContactName      string `json:"contact_name" binding:"required"`
	ExpiresDays      int    `json:"expires_days"`
	Message          string `json:"message"`
}

func (h *Handlers) createInvitation(c *gin.Context) {
	params := &createInvitationParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	caller := middleware.CallerFromContext(c)
	inv, err := h.engine.CreateInvitation(c.Request.Context(), caller, lifecycle.SendInvitationRequest{
		Email:            params.Email,
		OrganizationName: params.OrganizationName,
		ContactName:      params.ContactName,
		ExpiresDays:      params.ExpiresDays,
		Message:          params.Message,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.invitationToView(inv))
}

type listRequestsParams struct {
	Status    string `form:"status"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PerPage   int    `form:"per_page"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

func (h *Handlers) listRequests(c *gin.Context) {
	params := &listRequestsParams{}
	if err := c.ShouldBindQuery(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad query parameters"})
		return
	}

	filter := storage.InvitationFilter{
		Search:    params.Search,
		Page:      params.Page,
		PerPage:   params.PerPage,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}

	if params.Status != "" {
		id, err := h.statuses.Resolve(models.StatusName(params.Status))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		filter.StatusID = &id
	}

	page, err := storage.ListInvitations(h.db, filter)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	items := make([]*invitationView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, h.invitationToView(&page.Items[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    page.Total,
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}

func (h *Handlers) getRequest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request id"})
		return
	}

	inv, err := storage.GetInvitationByID(h.db, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondEngineError(c, lifecycle.ErrNotFound)
			return
		}
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.invitationToView(inv))
}

type updateStatusParams struct {
	Action           string `json:"action" binding:"required"`
	Message          string `json:"message"`
	CorrectionsNotes string `json:"corrections_notes"`
}

func (h *Handlers) updateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request id"})
		return
	}

	params := &updateStatusParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	caller := middleware.CallerFromContext(c)
	res, err := h.engine.Transition(c.Request.Context(), caller, uint(id), lifecycle.TransitionRequest{
		Action:           lifecycle.Action(params.Action),
		Message:          params.Message,
		CorrectionsNotes: params.CorrectionsNotes,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	resp := gin.H{
		"id":         res.InvitationID,
		"status":     res.Status,
		"decided_at": res.DecidedAt,
	}
	if res.OrganizationID != nil {
		resp["organization_id"] = *res.OrganizationID
	}
	if res.AdminUserID != nil {
		resp["admin_user_id"] = *res.AdminUserID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) statistics(c *gin.Context) {
	stats, err := h.engine.Statistics(c.Request.Context())
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
