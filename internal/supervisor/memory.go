package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// Memory is a Supervisor that only keeps bookkeeping. It runs nothing, but
// it assigns per-process log paths under its directory the way pm2 does
// under PM2_HOME/logs. The files appear once something writes them.
type Memory struct {
	dir    string
	nextID int
	procs  map[string]*models.Process
	mu     sync.Mutex
}

// NewMemory creates a Memory supervisor writing log files under dir.
func NewMemory(dir string) *Memory {
	return &Memory{
		dir:   dir,
		procs: make(map[string]*models.Process),
	}
}

// Connect prepares the log directory.
func (m *Memory) Connect(ctx context.Context) error {
	if m.dir == "" {
		return nil
	}
	return os.MkdirAll(m.dir, 0755)
}

// List returns every process ordered by ID.
func (m *Memory) List(ctx context.Context) ([]models.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(), nil
}

// Describe returns the processes whose name or ID equals target.
func (m *Memory) Describe(ctx context.Context, target string) ([]models.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterTarget(m.snapshot(), target), nil
}

// Start records a new online process.
func (m *Memory) Start(ctx context.Context, spec models.StartSpec) (*models.Process, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("process name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := strconv.Itoa(m.nextID)
	m.nextID++

	env := make(map[string]string, len(spec.Env))
	for k, v := range spec.Env {
		env[k] = v
	}

	p := &models.Process{
		ID:        id,
		Name:      spec.Name,
		Status:    models.StatusOnline,
		Env:       env,
		Backend:   BackendMemory,
		CreatedAt: time.Now().UTC(),
	}
	if m.dir != "" {
		p.OutLogPath = filepath.Join(m.dir, spec.Name+"-out.log")
		p.ErrLogPath = filepath.Join(m.dir, spec.Name+"-error.log")
	}
	m.procs[id] = p

	// Start only reports the ID, as pm2 does before the process settles.
	return &models.Process{ID: id, Name: spec.Name, Backend: BackendMemory}, nil
}

// Stop marks the process stopped.
func (m *Memory) Stop(ctx context.Context, id string) error {
	return m.update(id, func(p *models.Process) {
		p.Status = models.StatusStopped
	})
}

// Restart marks the process online and counts the restart.
func (m *Memory) Restart(ctx context.Context, id string) error {
	return m.update(id, func(p *models.Process) {
		p.Status = models.StatusOnline
		p.Restarts++
		p.CreatedAt = time.Now().UTC()
	})
}

// Reload behaves like Restart.
func (m *Memory) Reload(ctx context.Context, id string) error {
	return m.Restart(ctx, id)
}

// Delete forgets the process. Log files are left in place.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.procs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoMatch, id)
	}
	delete(m.procs, id)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) update(id string, fn func(*models.Process)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.procs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMatch, id)
	}
	fn(p)
	return nil
}

func (m *Memory) snapshot() []models.Process {
	out := make([]models.Process, 0, len(m.procs))
	for _, p := range m.procs {
		cp := *p
		cp.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			cp.Env[k] = v
		}
		if cp.Status == models.StatusOnline {
			cp.Uptime = int64(time.Since(cp.CreatedAt).Seconds())
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}
