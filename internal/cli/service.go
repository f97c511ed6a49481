package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pandeptwidyaop/pm2-remote/internal/service"
)

func serviceCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the systemd unit",
	}
	cmd.AddCommand(serviceInstallCmd(rf))
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the systemd unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.Uninstall(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Service removed")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the systemd unit state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := service.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Installed: %v\n", st.Installed)
			fmt.Fprintf(out, "Enabled:   %v\n", st.Enabled)
			fmt.Fprintf(out, "Running:   %v (%s/%s)\n", st.Running, st.ActiveState, st.SubState)
			return nil
		},
	})
	return cmd
}

func serviceInstallCmd(rf *rootFlags) *cobra.Command {
	unit := service.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install, enable and start the systemd unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("unit-config") && cmd.Flags().Changed("config") {
				unit.ConfigPath = rf.ConfigPath
			}
			if abs, err := filepath.Abs(unit.ConfigPath); err == nil {
				unit.ConfigPath = abs
			}
			if unit.PM2Home == "" {
				if cfg, err := rf.loadConfig(); err == nil {
					unit.PM2Home = cfg.Supervisor.PM2Home
				}
			}

			if err := service.Install(unit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service installed (config %s)\n", unit.ConfigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&unit.ConfigPath, "unit-config", unit.ConfigPath, "config path the unit starts the server with")
	cmd.Flags().StringVar(&unit.User, "user", unit.User, "user the server runs as")
	cmd.Flags().StringVar(&unit.WorkingDir, "working-dir", unit.WorkingDir, "working directory (kept writable)")
	cmd.Flags().StringVar(&unit.PM2Home, "pm2-home", "", "PM2_HOME for the server (defaults to supervisor.pm2_home)")
	return cmd
}
