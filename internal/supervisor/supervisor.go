// Package supervisor abstracts the process manager that actually runs
// workloads: pm2, Docker, or an in-memory stand-in.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// Backend names accepted in supervisor.backend.
const (
	BackendPM2    = "pm2"
	BackendDocker = "docker"
	BackendMemory = "memory"
)

var (
	// ErrNoMatch is returned by mutating calls when no process has the ID.
	ErrNoMatch = errors.New("no process matches target")
	// ErrNameInUse is returned by Start when the name is already registered.
	ErrNameInUse = errors.New("process name already in use")
)

// Supervisor is the process manager capability. Describe looks a target up
// by name or supervisor-assigned ID; the mutating calls take an ID only and
// never fall back to a name match.
type Supervisor interface {
	Connect(ctx context.Context) error
	List(ctx context.Context) ([]models.Process, error)
	// Describe returns every process matching target; an empty result is
	// not an error.
	Describe(ctx context.Context, target string) ([]models.Process, error)
	Start(ctx context.Context, spec models.StartSpec) (*models.Process, error)
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	Reload(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// New builds the backend named in cfg.
func New(cfg config.SupervisorConfig) (Supervisor, error) {
	switch cfg.Backend {
	case BackendPM2, "":
		return NewPM2(cfg.PM2Binary, cfg.PM2Home), nil
	case BackendDocker:
		return NewDocker(cfg.DockerHost), nil
	case BackendMemory:
		return NewMemory(cfg.MemoryDir), nil
	default:
		return nil, fmt.Errorf("unknown supervisor backend %q", cfg.Backend)
	}
}

// matches reports whether p is addressed by target.
func matches(p models.Process, target string) bool {
	return p.ID == target || p.Name == target
}

func filterTarget(all []models.Process, target string) []models.Process {
	out := make([]models.Process, 0, 1)
	for _, p := range all {
		if matches(p, target) {
			out = append(out, p)
		}
	}
	return out
}
