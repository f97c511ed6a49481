package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// PM2 drives a local pm2 daemon through its command line.
type PM2 struct {
	binary string
	home   string
}

// NewPM2 creates a PM2 supervisor. An empty home keeps pm2's default
// PM2_HOME.
func NewPM2(binary, home string) *PM2 {
	if binary == "" {
		binary = "pm2"
	}
	return &PM2{binary: binary, home: home}
}

// Connect makes sure the pm2 daemon is up. pm2 spawns it on first ping.
func (p *PM2) Connect(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("pm2 binary %q not found: %w", p.binary, err)
	}
	_, err := p.run(ctx, "ping")
	return err
}

// List returns every pm2-managed process.
func (p *PM2) List(ctx context.Context) ([]models.Process, error) {
	out, err := p.run(ctx, "jlist")
	if err != nil {
		return nil, err
	}
	return parseJList(out)
}

// Describe returns the processes whose name or pm_id equals target.
func (p *PM2) Describe(ctx context.Context, target string) ([]models.Process, error) {
	all, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterTarget(all, target), nil
}

// Start submits spec as a one-app ecosystem file. The returned process
// only carries the ID and name. pm2 restarts an app that is already
// registered under the same name, so that case is refused.
func (p *PM2) Start(ctx context.Context, spec models.StartSpec) (*models.Process, error) {
	existing, err := p.Describe(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNameInUse, spec.Name)
	}

	file, err := os.CreateTemp("", "pm2-remote-*.config.json")
	if err != nil {
		return nil, fmt.Errorf("create ecosystem file: %w", err)
	}
	defer func() { _ = os.Remove(file.Name()) }()

	if err := json.NewEncoder(file).Encode(buildEcosystem(spec)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write ecosystem file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("write ecosystem file: %w", err)
	}

	if _, err := p.run(ctx, "start", file.Name()); err != nil {
		return nil, err
	}

	started, err := p.Describe(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	if len(started) == 0 {
		return nil, fmt.Errorf("pm2 did not register %s", spec.Name)
	}

	// The newest instance carries the highest pm_id.
	newest := started[0]
	for _, proc := range started[1:] {
		if atoiOrZero(proc.ID) > atoiOrZero(newest.ID) {
			newest = proc
		}
	}
	return &models.Process{ID: newest.ID, Name: newest.Name, Backend: BackendPM2}, nil
}

// Stop stops the process with pm_id id.
func (p *PM2) Stop(ctx context.Context, id string) error {
	return p.act(ctx, "stop", id)
}

// Restart restarts the process with pm_id id.
func (p *PM2) Restart(ctx context.Context, id string) error {
	return p.act(ctx, "restart", id)
}

// Reload performs a zero-downtime reload of the process with pm_id id.
func (p *PM2) Reload(ctx context.Context, id string) error {
	return p.act(ctx, "reload", id)
}

// Delete removes the process with pm_id id from pm2.
func (p *PM2) Delete(ctx context.Context, id string) error {
	return p.act(ctx, "delete", id)
}

// act runs a pm2 command against a pm_id. pm2 reads a numeric argument as
// a pm_id and anything else as an app name, so non-numeric ids are refused.
func (p *PM2) act(ctx context.Context, command, id string) error {
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("%w: %q is not a pm_id", ErrNoMatch, id)
	}
	_, err := p.run(ctx, command, id)
	return err
}

// Close is a no-op; the pm2 daemon outlives this process.
func (p *PM2) Close() error {
	return nil
}

// run executes a pm2 command and returns its stdout.
func (p *PM2) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Env = os.Environ()
	if p.home != "" {
		cmd.Env = append(cmd.Env, "PM2_HOME="+p.home)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(string(output))
		}
		return nil, fmt.Errorf("pm2 %s: %s: %s", args[0], err, msg)
	}
	return output, nil
}

type ecosystem struct {
	Apps []ecosystemApp `json:"apps"`
}

type ecosystemApp struct {
	Env         map[string]string `json:"env,omitempty"`
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Cwd         string            `json:"cwd,omitempty"`
	Interpreter string            `json:"interpreter,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Instances   int               `json:"instances,omitempty"`
	MinUptime   int               `json:"min_uptime,omitempty"`
	MaxRestarts int               `json:"max_restarts,omitempty"`
}

func buildEcosystem(spec models.StartSpec) ecosystem {
	return ecosystem{Apps: []ecosystemApp{{
		Env:         spec.Env,
		Name:        spec.Name,
		Script:      spec.Script,
		Cwd:         spec.Cwd,
		Interpreter: spec.Interpreter,
		Args:        spec.Args,
		Instances:   spec.Instances,
		MinUptime:   spec.MinUptime,
		MaxRestarts: spec.MaxRestarts,
	}}}
}

type jlistEntry struct {
	Name  string `json:"name"`
	PMID  int    `json:"pm_id"`
	PID   int    `json:"pid"`
	Monit struct {
		Memory uint64  `json:"memory"`
		CPU    float64 `json:"cpu"`
	} `json:"monit"`
	Env struct {
		Env         map[string]any `json:"env"`
		Status      string         `json:"status"`
		OutLogPath  string         `json:"pm_out_log_path"`
		ErrLogPath  string         `json:"pm_err_log_path"`
		PMUptime    int64          `json:"pm_uptime"`
		CreatedAt   int64          `json:"created_at"`
		RestartTime int            `json:"restart_time"`
	} `json:"pm2_env"`
}

// parseJList decodes `pm2 jlist` output. pm2 may print notices before the
// JSON array, so decoding starts at the first '['.
func parseJList(out []byte) ([]models.Process, error) {
	start := bytes.IndexByte(out, '[')
	if start < 0 {
		return nil, fmt.Errorf("pm2 jlist: no process list in output")
	}

	var entries []jlistEntry
	if err := json.Unmarshal(out[start:], &entries); err != nil {
		return nil, fmt.Errorf("pm2 jlist: %w", err)
	}

	procs := make([]models.Process, 0, len(entries))
	now := time.Now()
	for _, e := range entries {
		proc := models.Process{
			ID:         strconv.Itoa(e.PMID),
			Name:       e.Name,
			Status:     pm2Status(e.Env.Status),
			PID:        e.PID,
			Env:        stringifyEnv(e.Env.Env),
			OutLogPath: e.Env.OutLogPath,
			ErrLogPath: e.Env.ErrLogPath,
			Restarts:   e.Env.RestartTime,
			CPU:        e.Monit.CPU,
			Memory:     e.Monit.Memory,
			Backend:    BackendPM2,
		}
		if e.Env.CreatedAt > 0 {
			proc.CreatedAt = time.UnixMilli(e.Env.CreatedAt).UTC()
		}
		if proc.Status == models.StatusOnline && e.Env.PMUptime > 0 {
			proc.Uptime = int64(now.Sub(time.UnixMilli(e.Env.PMUptime)).Seconds())
		}
		procs = append(procs, proc)
	}
	return procs, nil
}

func pm2Status(s string) models.ProcessStatus {
	switch s {
	case "online":
		return models.StatusOnline
	case "stopped", "stopping":
		return models.StatusStopped
	case "errored":
		return models.StatusErrored
	case "launching", "waiting restart", "one-launch-status":
		return models.StatusLaunching
	default:
		return models.StatusUnknown
	}
}

// stringifyEnv flattens pm2's loosely typed env values.
func stringifyEnv(env map[string]any) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
