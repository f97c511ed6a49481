// Package service installs pm2-remote as a systemd unit.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const (
	unitName = "pm2-remote"
	unitPath = "/etc/systemd/system/pm2-remote.service"
)

// UnitStatus is what systemd reports about the unit.
type UnitStatus struct {
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	Installed   bool   `json:"installed"`
	Enabled     bool   `json:"enabled"`
	Running     bool   `json:"running"`
}

// UnitConfig fills the unit template.
type UnitConfig struct {
	ExecPath   string
	ConfigPath string
	User       string
	WorkingDir string
	// PM2Home is exported to the server and kept writable; empty leaves
	// pm2's default (~/.pm2) and relaxes home protection.
	PM2Home string
}

const unitTemplate = `[Unit]
Description=pm2-remote - namespaced process control API
After=network.target

[Service]
Type=simple
User={{.User}}
Group={{.User}}
WorkingDirectory={{.WorkingDir}}
ExecStart={{.ExecPath}} serve --config {{.ConfigPath}}
{{- if .PM2Home}}
Environment=PM2_HOME={{.PM2Home}}
{{- end}}
Restart=always
RestartSec=5
StandardOutput=journal
StandardError=journal

NoNewPrivileges=true
ProtectSystem=strict
{{- if .PM2Home}}
ProtectHome=read-only
ReadWritePaths={{.WorkingDir}} {{.PM2Home}}
{{- else}}
ReadWritePaths={{.WorkingDir}}
{{- end}}
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`

// RenderUnit returns the unit file for cfg.
func RenderUnit(cfg UnitConfig) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render unit: %w", err)
	}
	return buf.String(), nil
}

// DefaultConfig points the unit at the running binary.
func DefaultConfig() UnitConfig {
	execPath, _ := os.Executable()
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	return UnitConfig{
		ExecPath:   execPath,
		ConfigPath: "/etc/pm2-remote/config.yaml",
		User:       "root",
		WorkingDir: "/var/lib/pm2-remote",
	}
}

func checkHost() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("systemd units are only supported on Linux")
	}
	if _, err := exec.LookPath("systemctl"); err != nil {
		return fmt.Errorf("systemd not available on this system")
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("root privileges required")
	}
	return nil
}

// Install writes, enables and starts the unit.
func Install(cfg UnitConfig) error {
	if err := checkHost(); err != nil {
		return err
	}

	content, err := RenderUnit(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.WorkingDir, 0750); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", unitName},
		{"start", unitName},
	} {
		if err := systemctl(args...); err != nil {
			return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

// Uninstall stops, disables and removes the unit.
func Uninstall() error {
	if err := checkHost(); err != nil {
		return err
	}

	_ = systemctl("stop", unitName)
	_ = systemctl("disable", unitName)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	return nil
}

// Status reports the unit state. Hosts without systemd report a zero status.
func Status() (*UnitStatus, error) {
	status := &UnitStatus{}
	if runtime.GOOS != "linux" {
		return status, nil
	}
	if _, err := exec.LookPath("systemctl"); err != nil {
		return status, nil
	}

	if _, err := os.Stat(unitPath); err == nil {
		status.Installed = true
	}
	if v, err := property("ActiveState"); err == nil {
		status.ActiveState = v
		status.Running = v == "active"
	}
	if v, err := property("SubState"); err == nil {
		status.SubState = v
	}
	if out, err := exec.Command("systemctl", "is-enabled", unitName).Output(); err == nil {
		status.Enabled = strings.TrimSpace(string(out)) == "enabled"
	}
	return status, nil
}

func systemctl(args ...string) error {
	output, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func property(name string) (string, error) {
	out, err := exec.Command("systemctl", "show", unitName, "--property="+name, "--value").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
