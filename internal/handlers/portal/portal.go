// Package portal serves the static assets of the public submission
// page. The page itself is a thin client of the /api/public endpoints.
package portal

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed res/*
var staticFiles embed.FS

func RegisterHandlers(rg *gin.RouterGroup) {
	staticFiles, _ := fs.Sub(staticFiles, "res")
	rg.StaticFS("/static", http.FS(staticFiles))
}
