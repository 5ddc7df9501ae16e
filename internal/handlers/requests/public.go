package requests

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecanizalez/orgreq/internal/lifecycle"
)

type organizationParams struct {
	Name       string `json:"name" binding:"required"`
	Slug       string `json:"slug"`
	WebsiteURL string `json:"website_url"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

type adminParams struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
}

type submissionParams struct {
	Organization organizationParams `json:"organization" binding:"required"`
	Admin        adminParams        `json:"admin" binding:"required"`
}

func (p *submissionParams) organization() lifecycle.OrganizationSubmission {
	return lifecycle.OrganizationSubmission{
		Name:       p.Organization.Name,
		Slug:       p.Organization.Slug,
		WebsiteURL: p.Organization.WebsiteURL,
		Address:    p.Organization.Address,
		Phone:      p.Organization.Phone,
		Email:      p.Organization.Email,
	}
}

func (p *submissionParams) admin() lifecycle.AdminSubmission {
	return lifecycle.AdminSubmission{
		FirstName: p.Admin.FirstName,
		LastName:  p.Admin.LastName,
		Email:     p.Admin.Email,
		Phone:     p.Admin.Phone,
	}
}

// createPublicRequest accepts a walk-in organization request. No token
// involved; the request lands straight in the review queue.
func (h *Handlers) createPublicRequest(c *gin.Context) {
	params := &submissionParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	inv, err := h.engine.CreatePublicRequest(c.Request.Context(), lifecycle.PublicRequest{
		Organization: params.organization(),
		Admin:        params.admin(),
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	// The token stays server-side; the requester gets a receipt only.
	c.JSON(http.StatusCreated, gin.H{
		"id":     inv.ID,
		"status": string(h.statuses.Name(inv.StatusID)),
	})
}

func (h *Handlers) verifyToken(c *gin.Context) {
	info, err := h.engine.VerifyToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			// Token guessing is the expected attack here.
			responseErrorAndLogMaybeHack(c, http.StatusNotFound, "unknown token")
			return
		}
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":      info.Email,
		"expires_at": info.ExpiresAt,
		"is_expired": info.IsExpired,
	})
}

func (h *Handlers) submit(c *gin.Context) {
	params := &submissionParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	res, err := h.engine.Submit(c.Request.Context(), c.Param("token"), lifecycle.SubmissionRequest{
		Organization: params.organization(),
		Admin:        params.admin(),
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			responseErrorAndLogMaybeHack(c, http.StatusNotFound, "unknown token")
			return
		}
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     res.InvitationID,
		"status": string(res.Status),
	})
}
