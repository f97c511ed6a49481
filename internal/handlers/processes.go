package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/middleware"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

// ProcessHandler exposes the supervised processes visible to the caller's scope.
type ProcessHandler struct {
	processService *services.ProcessService
	auditService   *services.AuditService
	defaultLines   int
}

// NewProcessHandler creates a new ProcessHandler instance.
func NewProcessHandler(processService *services.ProcessService, auditService *services.AuditService, logs config.LogsConfig) *ProcessHandler {
	lines := logs.DefaultLines
	if lines <= 0 {
		lines = 100
	}
	return &ProcessHandler{
		processService: processService,
		auditService:   auditService,
		defaultLines:   lines,
	}
}

// List returns every process in the caller's scope.
// GET /api/pm2
func (h *ProcessHandler) List(c *gin.Context) {
	procs, err := h.processService.List(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, procs)
}

// Get describes one process by name.
// GET /api/pm2/:name
func (h *ProcessHandler) Get(c *gin.Context) {
	proc, err := h.processService.Describe(c.Request.Context(), c.Param("name"), middleware.GetScope(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, proc)
}

// Start launches a process. Namespace tokens always start into their own namespace.
// POST /api/pm2
func (h *ProcessHandler) Start(c *gin.Context) {
	var spec models.StartSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	scope := middleware.GetScope(c)
	proc, err := h.processService.Start(c.Request.Context(), spec, scope)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auditService.LogProcessAction(scope, "start", proc, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusCreated, proc)
}

// Stop stops a process.
// POST /api/pm2/:name/stop
func (h *ProcessHandler) Stop(c *gin.Context) {
	h.lifecycle(c, "stop", "stopped", h.processService.Stop)
}

// Restart restarts a process.
// POST /api/pm2/:name/restart
func (h *ProcessHandler) Restart(c *gin.Context) {
	h.lifecycle(c, "restart", "restarted", h.processService.Restart)
}

// Reload gracefully reloads a process.
// POST /api/pm2/:name/reload
func (h *ProcessHandler) Reload(c *gin.Context) {
	h.lifecycle(c, "reload", "reloaded", h.processService.Reload)
}

// Delete removes a process from the supervisor.
// DELETE /api/pm2/:name
func (h *ProcessHandler) Delete(c *gin.Context) {
	h.lifecycle(c, "delete", "deleted", h.processService.Delete)
}

type lifecycleFunc func(ctx context.Context, name string, scope models.Scope) (*models.Process, error)

func (h *ProcessHandler) lifecycle(c *gin.Context, action, past string, fn lifecycleFunc) {
	name := c.Param("name")
	scope := middleware.GetScope(c)

	proc, err := fn(c.Request.Context(), name, scope)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auditService.LogProcessAction(scope, action, proc, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Process %s %s successfully", name, past),
		"process": proc,
	})
}

// Logs returns the tail of a process's stdout and stderr logs.
// GET /api/pm2/:name/logs?lines=100
func (h *ProcessHandler) Logs(c *gin.Context) {
	lines := h.defaultLines
	if raw := c.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be a positive integer"})
			return
		}
		lines = n
	}

	logs, err := h.processService.Logs(c.Request.Context(), c.Param("name"), lines, middleware.GetScope(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
