// Package middleware provides HTTP middleware for bearer authentication,
// logging, rate limiting and response hardening.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

const (
	// ScopeContextKey is the key for storing the resolved scope in request context.
	ScopeContextKey = "scope"
	// TOTPHeader carries the root TOTP code for token administration.
	TOTPHeader = "X-TOTP-Code"
	// tokenQueryParam lets EventSource and WebSocket clients, which cannot
	// set headers, authenticate on GET requests.
	tokenQueryParam = "token"
)

// BearerAuth resolves the bearer credential into a scope or rejects the
// request with 401.
func BearerAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearerCredential(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		scope, err := authService.Classify(credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API token"})
			c.Abort()
			return
		}

		c.Set(ScopeContextKey, scope)
		c.Next()
	}
}

// RequireRoot rejects namespace-scoped requests with 403.
func RequireRoot(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authService.RequireRoot(GetScope(c)); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Root API token required for this operation"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRootTOTP checks the X-TOTP-Code header when a root TOTP secret is
// configured.
func RequireRootTOTP(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authService.VerifyRootTOTP(c.GetHeader(TOTPHeader)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetScope returns the scope set by BearerAuth. Without one it returns a
// namespace scope that matches nothing.
func GetScope(c *gin.Context) models.Scope {
	if v, ok := c.Get(ScopeContextKey); ok {
		if scope, ok := v.(models.Scope); ok {
			return scope
		}
	}
	return models.Scope{}
}

func bearerCredential(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			return "", false
		}
		return strings.TrimSpace(header[len(prefix):]), true
	}

	if c.Request.Method == http.MethodGet {
		if token := c.Query(tokenQueryParam); token != "" {
			return token, true
		}
	}
	return "", false
}
