package router

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/handlers"
	"github.com/pandeptwidyaop/pm2-remote/internal/middleware"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

// Services are the long-lived instances the routes are served from.
type Services struct {
	Auth      *services.AuthService
	Tokens    *services.TokenService
	Processes *services.ProcessService
	Audit     *services.AuditService
}

// New builds the HTTP engine. limiter may be nil to disable rate limiting.
func New(cfg *config.Config, svc Services, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	tokenHandler := handlers.NewTokenHandler(svc.Tokens, svc.Audit)
	processHandler := handlers.NewProcessHandler(svc.Processes, svc.Audit, cfg.Logs)
	streamHandler := handlers.NewStreamHandler(svc.Processes)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	var systemDir string
	if cfg.Database.Driver != "postgres" && cfg.Database.Path != ":memory:" {
		systemDir = filepath.Dir(cfg.Database.Path)
	}
	systemHandler := handlers.NewSystemHandler(systemDir)

	r.GET("/", handlers.Health)

	api := r.Group("/api")
	api.Use(middleware.BodySizeLimit(cfg.Security.MaxBodyBytes))
	if limiter != nil {
		api.Use(limiter.Middleware())
	}
	{
		api.GET("/version", handlers.Version)

		pm2 := api.Group("/pm2")
		pm2.Use(middleware.BearerAuth(svc.Auth))
		{
			pm2.GET("", processHandler.List)
			pm2.POST("", processHandler.Start)
			pm2.GET("/:name", processHandler.Get)
			pm2.DELETE("/:name", processHandler.Delete)
			pm2.POST("/:name/stop", processHandler.Stop)
			pm2.POST("/:name/restart", processHandler.Restart)
			pm2.POST("/:name/reload", processHandler.Reload)
			pm2.GET("/:name/logs", processHandler.Logs)
			pm2.GET("/:name/logs/stream", streamHandler.Stream)
			pm2.GET("/:name/logs/ws", streamHandler.WebSocket)
		}

		root := api.Group("")
		root.Use(middleware.BearerAuth(svc.Auth), middleware.RequireRoot(svc.Auth))
		{
			root.GET("/audit", auditHandler.List)
			root.GET("/system", systemHandler.Get)

			namespaces := root.Group("/namespaces")
			namespaces.Use(middleware.RequireRootTOTP(svc.Auth))
			{
				namespaces.POST("", tokenHandler.Create)
				namespaces.GET("", tokenHandler.List)
				namespaces.GET("/:id", tokenHandler.Get)
				namespaces.DELETE("/:id", tokenHandler.Delete)
			}
		}
	}

	return r
}
