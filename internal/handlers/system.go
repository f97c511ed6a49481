package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/metrics"
)

// SystemHandler reports host resource usage to root callers.
type SystemHandler struct {
	dataDir string
}

// NewSystemHandler creates a SystemHandler. dataDir selects which
// filesystem's usage is reported; empty omits the disk section.
func NewSystemHandler(dataDir string) *SystemHandler {
	return &SystemHandler{dataDir: dataDir}
}

// Get returns a snapshot of host CPU, memory, load and uptime.
// GET /api/system
func (h *SystemHandler) Get(c *gin.Context) {
	host, err := metrics.CollectHost(c.Request.Context(), h.dataDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, host)
}
