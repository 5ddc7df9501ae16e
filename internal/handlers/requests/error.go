package requests

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecanizalez/orgreq/internal/handlers/abuse"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
)

func responseErrorAndLogMaybeHack(c *gin.Context, httpCode int, errMsg string) {
	logMayHack(c, errMsg)
	c.JSON(httpCode, gin.H{"error": http.StatusText(httpCode)})
}

func logMayHack(c *gin.Context, errMsg string) {
	reason := c.FullPath() + " " + errMsg
	c.Set(abuse.KeyFlag, reason)
}

// respondEngineError maps lifecycle errors onto HTTP statuses. Anything
// unrecognized is a server fault and stays opaque.
func respondEngineError(c *gin.Context, err error) {
	verr := &lifecycle.ValidationError{}
	terr := &lifecycle.InvalidTransitionError{}
	perr := &lifecycle.ProvisioningError{}

	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{
			"error":  terr.Error(),
			"status": string(terr.From),
		})
	case errors.As(err, &perr):
		logger.Error().Err(err).Msg("provisioning failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provisioning failed"})
	default:
		logger.Error().Err(err).Msg("request handling failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
