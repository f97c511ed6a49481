package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/pm2-remote/internal/middleware"
	"github.com/pandeptwidyaop/pm2-remote/internal/router"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
	"github.com/pandeptwidyaop/pm2-remote/internal/supervisor"
	"github.com/pandeptwidyaop/pm2-remote/internal/version"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rf.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.APIToken == "" {
				return fmt.Errorf("root token is required: set API_TOKEN or auth.api_token")
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Printf("Error closing database: %v", err)
				}
			}()

			sup, err := supervisor.New(cfg.Supervisor)
			if err != nil {
				return err
			}
			processes := services.NewProcessService(sup, cfg.Logs)
			defer func() {
				if err := processes.Close(); err != nil {
					log.Printf("Error closing supervisor: %v", err)
				}
			}()

			tokens := services.NewTokenService(db, cfg.Auth.BcryptCost)
			auth := services.NewAuthService(cfg.Auth.APIToken, tokens, cfg.Auth.RootTOTPSecret)
			if auth.TOTPEnabled() {
				log.Println("Root TOTP required for namespace token administration")
			}

			limiter := middleware.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.GetRateLimitWindow())
			defer limiter.Stop()

			gin.SetMode(gin.ReleaseMode)
			r := router.New(cfg, router.Services{
				Auth:      auth,
				Tokens:    tokens,
				Processes: processes,
				Audit:     services.NewAuditService(db),
			}, limiter)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Request contexts derive from baseCtx so open log streams end on shutdown.
			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return baseCtx },
			}
			srv.RegisterOnShutdown(cancelBase)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.Printf("%s starting on %s (supervisor: %s)", version.String(), addr, cfg.Supervisor.Backend)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server: %w", err)
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
