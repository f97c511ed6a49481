package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// Docker manages containers as processes. The container name is the
// process name and the full container ID is the process ID. The daemon
// resolves a full ID before any name, so mutating calls never land on a
// container whose name happens to look like an ID.
type Docker struct {
	host string
	cli  *client.Client
	mu   sync.Mutex
}

// NewDocker creates a Docker supervisor. An empty host uses DOCKER_HOST
// or the default socket.
func NewDocker(host string) *Docker {
	return &Docker{host: host}
}

// Connect creates the API client and pings the daemon.
func (d *Docker) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cli != nil {
		return nil
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if d.host != "" {
		opts = append(opts, client.WithHost(d.host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return fmt.Errorf("failed to reach Docker daemon: %w", err)
	}

	d.cli = cli
	return nil
}

func (d *Docker) conn() (*client.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli == nil {
		return nil, fmt.Errorf("docker supervisor is not connected")
	}
	return d.cli, nil
}

// List returns every container, running or not.
func (d *Docker) List(ctx context.Context) ([]models.Process, error) {
	cli, err := d.conn()
	if err != nil {
		return nil, err
	}

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	procs := make([]models.Process, 0, len(containers))
	for _, c := range containers {
		proc, err := d.inspect(ctx, cli, c.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		procs = append(procs, *proc)
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })
	return procs, nil
}

// Describe inspects target, which may be a container name or ID.
func (d *Docker) Describe(ctx context.Context, target string) ([]models.Process, error) {
	cli, err := d.conn()
	if err != nil {
		return nil, err
	}

	proc, err := d.inspect(ctx, cli, target)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return []models.Process{}, nil
		}
		return nil, err
	}
	return []models.Process{*proc}, nil
}

// Start creates and starts a container from spec.Image, or from
// spec.Script when no image is given.
func (d *Docker) Start(ctx context.Context, spec models.StartSpec) (*models.Process, error) {
	cli, err := d.conn()
	if err != nil {
		return nil, err
	}

	image := spec.Image
	if image == "" {
		image = spec.Script
	}
	if image == "" {
		return nil, fmt.Errorf("an image is required to start a container")
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	cfg := &container.Config{
		Image:      image,
		Cmd:        spec.Args,
		Env:        env,
		WorkingDir: spec.Cwd,
	}
	hostCfg := &container.HostConfig{}
	if spec.MaxRestarts > 0 {
		hostCfg.RestartPolicy = container.RestartPolicy{Name: "on-failure", MaximumRetryCount: spec.MaxRestarts}
	}

	created, err := cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return &models.Process{ID: created.ID, Name: spec.Name, Backend: BackendDocker}, nil
}

// Stop stops the container.
func (d *Docker) Stop(ctx context.Context, id string) error {
	cli, err := d.conn()
	if err != nil {
		return err
	}
	if err := cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Restart restarts the container.
func (d *Docker) Restart(ctx context.Context, id string) error {
	cli, err := d.conn()
	if err != nil {
		return err
	}
	if err := cli.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to restart container: %w", err)
	}
	return nil
}

// Reload sends SIGHUP, which most servers treat as a configuration reload.
func (d *Docker) Reload(ctx context.Context, id string) error {
	cli, err := d.conn()
	if err != nil {
		return err
	}
	if err := cli.ContainerKill(ctx, id, "SIGHUP"); err != nil {
		return fmt.Errorf("failed to reload container: %w", err)
	}
	return nil
}

// Delete force-removes the container.
func (d *Docker) Delete(ctx context.Context, id string) error {
	cli, err := d.conn()
	if err != nil {
		return err
	}
	if err := cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Close releases the API client.
func (d *Docker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli == nil {
		return nil
	}
	err := d.cli.Close()
	d.cli = nil
	return err
}

func (d *Docker) inspect(ctx context.Context, cli *client.Client, target string) (*models.Process, error) {
	info, err := cli.ContainerInspect(ctx, target)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	proc := &models.Process{
		ID:         info.ID,
		Name:       strings.TrimPrefix(info.Name, "/"),
		Restarts:   info.RestartCount,
		OutLogPath: info.LogPath,
		Backend:    BackendDocker,
		Env:        map[string]string{},
	}
	if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		proc.CreatedAt = created.UTC()
	}
	if info.Config != nil {
		proc.Env = parseEnv(info.Config.Env)
	}
	if info.State != nil {
		proc.Status = dockerStatus(info.State.Status, info.State.ExitCode)
		proc.PID = info.State.Pid
		if info.State.Running {
			if started, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
				proc.Uptime = int64(time.Since(started).Seconds())
			}
			proc.CPU, proc.Memory = sampleUsage(proc.PID)
		}
	}
	return proc, nil
}

func dockerStatus(state string, exitCode int) models.ProcessStatus {
	switch state {
	case "running":
		return models.StatusOnline
	case "created", "restarting":
		return models.StatusLaunching
	case "exited", "dead":
		if exitCode != 0 {
			return models.StatusErrored
		}
		return models.StatusStopped
	case "paused", "removing":
		return models.StatusStopped
	default:
		return models.StatusUnknown
	}
}

// parseEnv turns KEY=VALUE pairs into a map. Later keys win.
func parseEnv(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
