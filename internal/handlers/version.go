package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/version"
)

// Health answers liveness probes.
// GET /
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version returns build information.
// GET /api/version
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Info())
}
