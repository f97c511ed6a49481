package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/middleware"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

// TokenHandler handles namespace token administration. Every route is
// expected to sit behind root authentication.
type TokenHandler struct {
	tokenService *services.TokenService
	auditService *services.AuditService
}

// NewTokenHandler creates a new TokenHandler instance.
func NewTokenHandler(tokenService *services.TokenService, auditService *services.AuditService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
		auditService: auditService,
	}
}

// Create mints a namespace token. The plaintext appears only in this response.
// POST /api/namespaces
func (h *TokenHandler) Create(c *gin.Context) {
	var req models.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Namespace is required"})
		return
	}

	created, err := h.tokenService.CreateToken(req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auditService.LogTokenCreate(middleware.GetScope(c), created, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusCreated, created)
}

// List returns every namespace token, newest first.
// GET /api/namespaces
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.tokenService.ListTokens()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Get returns one token's public fields.
// GET /api/namespaces/:id
func (h *TokenHandler) Get(c *gin.Context) {
	token, err := h.tokenService.GetToken(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// Delete revokes a token.
// DELETE /api/namespaces/:id
func (h *TokenHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.tokenService.DeleteToken(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
		return
	}

	h.auditService.LogTokenDelete(middleware.GetScope(c), id, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusOK, gin.H{"message": "Token deleted successfully"})
}
