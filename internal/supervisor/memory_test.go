package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pandeptwidyaop/pm2-remote/internal/config"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewMemory(dir)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	started, err := m.Start(ctx, models.StartSpec{
		Name:   "api",
		Script: "server.js",
		Env:    map[string]string{"namespace": "team-a"},
	})
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if started.ID == "" {
		t.Fatal("expected an ID from Start")
	}
	if started.Status != "" {
		t.Errorf("expected Start to return partial state, got status %q", started.Status)
	}

	procs, err := m.Describe(ctx, started.ID)
	if err != nil {
		t.Fatalf("failed to describe: %v", err)
	}
	if len(procs) != 1 {
		t.Fatalf("expected 1 process, got %d", len(procs))
	}
	p := procs[0]
	if p.Status != models.StatusOnline {
		t.Errorf("expected online, got %s", p.Status)
	}
	if p.Namespace() != "team-a" {
		t.Errorf("expected namespace team-a, got %q", p.Namespace())
	}
	if p.OutLogPath != filepath.Join(dir, "api-out.log") || p.ErrLogPath != filepath.Join(dir, "api-error.log") {
		t.Errorf("unexpected log paths %q %q", p.OutLogPath, p.ErrLogPath)
	}

	if err := m.Stop(ctx, started.ID); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	procs, _ = m.Describe(ctx, "api")
	if procs[0].Status != models.StatusStopped {
		t.Errorf("expected stopped, got %s", procs[0].Status)
	}

	if err := m.Restart(ctx, started.ID); err != nil {
		t.Fatalf("failed to restart: %v", err)
	}
	if err := m.Reload(ctx, started.ID); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	procs, _ = m.Describe(ctx, "api")
	if procs[0].Restarts != 2 || procs[0].Status != models.StatusOnline {
		t.Errorf("expected online with 2 restarts, got %s/%d", procs[0].Status, procs[0].Restarts)
	}

	if err := m.Delete(ctx, started.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	procs, _ = m.Describe(ctx, "api")
	if len(procs) != 0 {
		t.Errorf("expected no processes after delete, got %d", len(procs))
	}
}

func TestMemory_UnknownTarget(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	for name, fn := range map[string]func(context.Context, string) error{
		"stop":    m.Stop,
		"restart": m.Restart,
		"reload":  m.Reload,
		"delete":  m.Delete,
	} {
		if err := fn(ctx, "ghost"); !errors.Is(err, ErrNoMatch) {
			t.Errorf("%s: expected ErrNoMatch, got %v", name, err)
		}
	}
}

func TestMemory_MutationsMatchIDOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	// A process named like another process's ID.
	named, err := m.Start(ctx, models.StartSpec{Name: "1"})
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	web, err := m.Start(ctx, models.StartSpec{Name: "web"})
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if web.ID != "1" {
		t.Fatalf("expected web to get ID 1, got %s", web.ID)
	}

	if err := m.Stop(ctx, web.ID); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	procs, _ := m.Describe(ctx, named.ID)
	if len(procs) != 1 || procs[0].Status != models.StatusOnline {
		t.Errorf("stop by ID reached the process named %q: %+v", "1", procs)
	}

	if err := m.Delete(ctx, web.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	all, _ := m.List(ctx)
	if len(all) != 1 || all[0].ID != named.ID {
		t.Errorf("delete by ID removed the wrong process: %+v", all)
	}

	if err := m.Stop(ctx, "web"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected names to be rejected by Stop, got %v", err)
	}
}

func TestMemory_SnapshotIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	if _, err := m.Start(ctx, models.StartSpec{Name: "api", Env: map[string]string{"A": "1"}}); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	procs, _ := m.List(ctx)
	procs[0].Env["A"] = "mutated"

	again, _ := m.List(ctx)
	if again[0].Env["A"] != "1" {
		t.Error("List must return copies")
	}
}

func TestMemory_ListOrdered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		if _, err := m.Start(ctx, models.StartSpec{Name: name}); err != nil {
			t.Fatalf("failed to start %s: %v", name, err)
		}
	}

	procs, _ := m.List(ctx)
	for i, p := range procs {
		if atoiOrZero(p.ID) != i {
			t.Fatalf("expected ID %d at position %d, got %s", i, i, p.ID)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"", "*supervisor.PM2", false},
		{BackendPM2, "*supervisor.PM2", false},
		{BackendDocker, "*supervisor.Docker", false},
		{BackendMemory, "*supervisor.Memory", false},
		{"systemd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			sup, err := New(config.SupervisorConfig{Backend: tt.backend})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch sup.(type) {
			case *PM2:
				if tt.want != "*supervisor.PM2" {
					t.Errorf("got PM2, want %s", tt.want)
				}
			case *Docker:
				if tt.want != "*supervisor.Docker" {
					t.Errorf("got Docker, want %s", tt.want)
				}
			case *Memory:
				if tt.want != "*supervisor.Memory" {
					t.Errorf("got Memory, want %s", tt.want)
				}
			}
		})
	}
}
