// Package cli implements the pm2-remote command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/database"
)

const defaultConfigPath = "config.yaml"

type rootFlags struct {
	ConfigPath string
}

// Execute runs the command line with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:          "pm2-remote",
		Short:        "Namespaced remote control for pm2 and docker processes",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&rf.ConfigPath, "config", defaultConfigPath, "path to config file")

	rootCmd.AddCommand(serveCmd(rf))
	rootCmd.AddCommand(tokenCmd(rf))
	rootCmd.AddCommand(serviceCmd(rf))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadConfig reads the configured file. A missing default file falls back
// to built-in defaults; a missing explicit file is an error.
func (rf *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rf.ConfigPath)
	if err == nil {
		return cfg, nil
	}
	if rf.ConfigPath == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: %s not found, using default configuration", rf.ConfigPath)
		return config.Load("")
	}
	return nil, fmt.Errorf("load config %s: %w", rf.ConfigPath, err)
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}
