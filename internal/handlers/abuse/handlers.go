package abuse

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHandlers exposes manual ban controls for operators. Mount
// these on an internal-only listener, never the public one.
func (g *Guard) RegisterHandlers(rg *gin.RouterGroup) {
	rg.GET("/ban", g.ban)
	rg.GET("/logerr", g.logError)
}

type guardRequest struct {
	IP     string `form:"ip" binding:"required"`
	Reason string `form:"reason" binding:"required"`
}

func (g *Guard) ban(c *gin.Context) {
	req := &guardRequest{}

	if err := c.ShouldBind(req); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	g.fw.BanIP(req.IP, int(g.conf.BanMinutes), req.Reason)
}

func (g *Guard) logError(c *gin.Context) {
	req := &guardRequest{}

	if err := c.ShouldBind(req); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	g.fw.LogIPError(req.IP, req.Reason)
}
