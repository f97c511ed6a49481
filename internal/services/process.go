package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/logfile"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/supervisor"
	"github.com/pandeptwidyaop/pm2-remote/internal/validation"
)

// ProcessService enforces namespace isolation in front of a supervisor.
//
// Callers address processes by name. A name resolves to the first process
// the scope may see, and every later supervisor call uses that process's
// ID. Mutating calls validate first and act second; a process deleted or
// re-tagged between the two calls is not detected.
type ProcessService struct {
	sup  supervisor.Supervisor
	logs config.LogsConfig

	mu        sync.Mutex
	connected bool
}

// NewProcessService creates a ProcessService. The supervisor is connected
// on first use.
func NewProcessService(sup supervisor.Supervisor, logs config.LogsConfig) *ProcessService {
	return &ProcessService{sup: sup, logs: logs}
}

// ensureConnected connects the supervisor once. A failed attempt is
// retried by the next caller.
func (s *ProcessService) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if err := s.sup.Connect(ctx); err != nil {
		return fmt.Errorf("%w: connect: %v", ErrUpstream, err)
	}
	s.connected = true
	log.Printf("[Process] connected to supervisor")
	return nil
}

// List returns the processes visible to scope.
func (s *ProcessService) List(ctx context.Context, scope models.Scope) ([]models.Process, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	all, err := s.sup.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	visible := make([]models.Process, 0, len(all))
	for _, p := range all {
		if scope.Allows(p.Namespace()) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// Describe returns the named process, or ErrProcessNotFound when it does
// not exist or belongs to another namespace.
func (s *ProcessService) Describe(ctx context.Context, name string, scope models.Scope) (*models.Process, error) {
	if err := validation.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrInvalidInput, err)
	}
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	procs, err := s.sup.Describe(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for i := range procs {
		if scope.Allows(procs[i].Namespace()) {
			return &procs[i], nil
		}
	}
	return nil, ErrProcessNotFound
}

// describeID fetches a process by its supervisor ID.
func (s *ProcessService) describeID(ctx context.Context, id string, scope models.Scope) (*models.Process, error) {
	procs, err := s.sup.Describe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for i := range procs {
		if procs[i].ID == id && scope.Allows(procs[i].Namespace()) {
			return &procs[i], nil
		}
	}
	return nil, ErrProcessNotFound
}

// Start submits spec and returns the full state of the new process. A
// namespace scope always tags the process with its own namespace.
//
// Process names are unique across namespaces: pm2 restarts an app that is
// started under a name it already knows. A taken name is reported as
// ErrProcessExists without saying which namespace holds it.
func (s *ProcessService) Start(ctx context.Context, spec models.StartSpec, scope models.Scope) (*models.Process, error) {
	if err := validateStartSpec(spec); err != nil {
		return nil, err
	}

	merged, err := mergeSpec(spec, scope)
	if err != nil {
		return nil, err
	}

	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	existing, err := s.sup.Describe(ctx, merged.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for _, p := range existing {
		if p.Name == merged.Name {
			return nil, fmt.Errorf("%w: %s", ErrProcessExists, merged.Name)
		}
	}

	started, err := s.sup.Start(ctx, merged)
	if err != nil {
		if errors.Is(err, supervisor.ErrNameInUse) {
			return nil, fmt.Errorf("%w: %s", ErrProcessExists, merged.Name)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	proc, err := s.describeID(ctx, started.ID, scope)
	if err != nil {
		return nil, err
	}
	log.Printf("[Process] started %s (id=%s, namespace=%q)", proc.Name, proc.ID, proc.Namespace())
	return proc, nil
}

// Stop stops the named process and returns its new state.
func (s *ProcessService) Stop(ctx context.Context, name string, scope models.Scope) (*models.Process, error) {
	return s.act(ctx, name, scope, "stop", s.sup.Stop)
}

// Restart restarts the named process and returns its new state.
func (s *ProcessService) Restart(ctx context.Context, name string, scope models.Scope) (*models.Process, error) {
	return s.act(ctx, name, scope, "restart", s.sup.Restart)
}

// Reload reloads the named process and returns its new state.
func (s *ProcessService) Reload(ctx context.Context, name string, scope models.Scope) (*models.Process, error) {
	return s.act(ctx, name, scope, "reload", s.sup.Reload)
}

// Delete removes the named process. It returns the state seen before
// removal.
func (s *ProcessService) Delete(ctx context.Context, name string, scope models.Scope) (*models.Process, error) {
	target, err := s.Describe(ctx, name, scope)
	if err != nil {
		return nil, err
	}
	if err := s.sup.Delete(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	log.Printf("[Process] delete %s (id=%s)", target.Name, target.ID)
	return target, nil
}

func (s *ProcessService) act(ctx context.Context, name string, scope models.Scope, verb string, fn func(context.Context, string) error) (*models.Process, error) {
	target, err := s.Describe(ctx, name, scope)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	log.Printf("[Process] %s %s (id=%s)", verb, target.Name, target.ID)
	return s.describeID(ctx, target.ID, scope)
}

// Logs returns up to lines trailing lines of the process's stdout and
// stderr logs. A missing log file reads as empty.
func (s *ProcessService) Logs(ctx context.Context, name string, lines int, scope models.Scope) (*models.ProcessLogs, error) {
	if lines <= 0 {
		return nil, fmt.Errorf("%w: lines must be positive", ErrInvalidInput)
	}
	if s.logs.MaxLines > 0 && lines > s.logs.MaxLines {
		lines = s.logs.MaxLines
	}

	proc, err := s.Describe(ctx, name, scope)
	if err != nil {
		return nil, err
	}

	out, err := readLog(proc.OutLogPath, lines)
	if err != nil {
		return nil, err
	}
	errLines, err := readLog(proc.ErrLogPath, lines)
	if err != nil {
		return nil, err
	}
	return &models.ProcessLogs{Out: out, Error: errLines}, nil
}

func readLog(path string, lines int) ([]string, error) {
	if path == "" {
		return []string{}, nil
	}
	out, err := logfile.ReadLastLines(path, lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogIO, err)
	}
	return out, nil
}

// StreamLogs follows the process's log files and calls onEvent for every
// new line and keepalive until the session is closed or ctx ends.
func (s *ProcessService) StreamLogs(ctx context.Context, name string, scope models.Scope, onEvent func(models.LogEvent)) (*LogSession, error) {
	proc, err := s.Describe(ctx, name, scope)
	if err != nil {
		return nil, err
	}

	paths := map[models.LogChannel]string{}
	if proc.OutLogPath != "" {
		paths[models.ChannelOut] = proc.OutLogPath
	}
	if proc.ErrLogPath != "" {
		paths[models.ChannelError] = proc.ErrLogPath
	}

	session := newLogSession(proc.Name, paths, s.logs.GetPollInterval(), s.logs.GetHeartbeatInterval(), onEvent)
	if err := session.start(); err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-session.Done():
		}
	}()

	return session, nil
}

// Close releases the supervisor connection.
func (s *ProcessService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return s.sup.Close()
}

func validateStartSpec(spec models.StartSpec) error {
	if err := validation.ValidateProcessName(spec.Name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidInput, err)
	}
	if spec.Script == "" && spec.Image == "" {
		return fmt.Errorf("%w: script or image is required", ErrInvalidInput)
	}
	if spec.Cwd != "" {
		if err := validation.ValidatePath(spec.Cwd); err != nil {
			return fmt.Errorf("%w: cwd: %v", ErrInvalidInput, err)
		}
	}
	if spec.Instances < 0 || spec.MinUptime < 0 || spec.MaxRestarts < 0 {
		return fmt.Errorf("%w: instances, min_uptime and max_restarts must not be negative", ErrInvalidInput)
	}
	return nil
}

// mergeSpec returns a copy of spec with the namespace tag applied. Caller
// fields are kept, except that a namespace scope always overwrites the tag.
func mergeSpec(spec models.StartSpec, scope models.Scope) (models.StartSpec, error) {
	merged := spec
	merged.Env = make(map[string]string, len(spec.Env)+1)
	for k, v := range spec.Env {
		merged.Env[k] = v
	}
	if spec.Args != nil {
		merged.Args = append([]string(nil), spec.Args...)
	}

	if !scope.Root {
		if err := validation.ValidateNamespace(scope.Namespace); err != nil {
			return models.StartSpec{}, fmt.Errorf("%w: scope has no valid namespace", ErrForbidden)
		}
		merged.Namespace = scope.Namespace
		merged.Env[models.NamespaceEnvKey] = scope.Namespace
		return merged, nil
	}

	if spec.Namespace != "" {
		if err := validation.ValidateNamespace(spec.Namespace); err != nil {
			return models.StartSpec{}, fmt.Errorf("%w: %v", ErrInvalidNamespace, err)
		}
		merged.Env[models.NamespaceEnvKey] = spec.Namespace
	}
	return merged, nil
}
