package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

const sampleJList = `>>>> In-memory PM2 is out-of-date, do:
>>>> $ pm2 update
[{"pid":4242,"name":"api","pm_id":0,"monit":{"memory":52428800,"cpu":1.5},
  "pm2_env":{"status":"online","pm_uptime":1700000000000,"created_at":1690000000000,"restart_time":3,
    "pm_out_log_path":"/home/app/.pm2/logs/api-out.log","pm_err_log_path":"/home/app/.pm2/logs/api-error.log",
    "env":{"namespace":"team-a","PORT":3000,"DEBUG":true,"EMPTY":null}}},
 {"pid":0,"name":"worker","pm_id":1,"monit":{"memory":0,"cpu":0},
  "pm2_env":{"status":"stopped","restart_time":0,"pm_out_log_path":"/tmp/w-out.log","pm_err_log_path":"/tmp/w-err.log","env":{}}}]`

func TestParseJList(t *testing.T) {
	procs, err := parseJList([]byte(sampleJList))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(procs) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(procs))
	}

	api := procs[0]
	if api.ID != "0" || api.Name != "api" || api.PID != 4242 {
		t.Errorf("unexpected identity %+v", api)
	}
	if api.Status != models.StatusOnline {
		t.Errorf("expected online, got %s", api.Status)
	}
	if api.Namespace() != "team-a" {
		t.Errorf("expected namespace team-a, got %q", api.Namespace())
	}
	if api.Env["PORT"] != "3000" || api.Env["DEBUG"] != "true" {
		t.Errorf("unexpected env %v", api.Env)
	}
	if _, ok := api.Env["EMPTY"]; ok {
		t.Error("null env values should be dropped")
	}
	if api.OutLogPath != "/home/app/.pm2/logs/api-out.log" || api.ErrLogPath != "/home/app/.pm2/logs/api-error.log" {
		t.Errorf("unexpected log paths %q %q", api.OutLogPath, api.ErrLogPath)
	}
	if api.Restarts != 3 || api.Memory != 52428800 || api.CPU != 1.5 {
		t.Errorf("unexpected monit %+v", api)
	}
	if api.Uptime <= 0 {
		t.Errorf("expected positive uptime, got %d", api.Uptime)
	}

	worker := procs[1]
	if worker.Status != models.StatusStopped || worker.Uptime != 0 {
		t.Errorf("unexpected worker %+v", worker)
	}
	if worker.Namespace() != "" {
		t.Errorf("expected untagged worker, got %q", worker.Namespace())
	}
}

func TestParseJList_Invalid(t *testing.T) {
	if _, err := parseJList([]byte("daemon not running")); err == nil {
		t.Error("expected error for output without a list")
	}
	if _, err := parseJList([]byte("[{bad json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPM2Status(t *testing.T) {
	cases := map[string]models.ProcessStatus{
		"online":          models.StatusOnline,
		"stopping":        models.StatusStopped,
		"stopped":         models.StatusStopped,
		"errored":         models.StatusErrored,
		"launching":       models.StatusLaunching,
		"waiting restart": models.StatusLaunching,
		"weird":           models.StatusUnknown,
	}
	for in, want := range cases {
		if got := pm2Status(in); got != want {
			t.Errorf("pm2Status(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBuildEcosystem(t *testing.T) {
	eco := buildEcosystem(models.StartSpec{
		Name:      "api",
		Script:    "server.js",
		Args:      []string{"--port", "3000"},
		MinUptime: 5000,
		Env:       map[string]string{"namespace": "team-a"},
	})

	data, err := json.Marshal(eco)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string][]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	app := decoded["apps"][0]
	if app["name"] != "api" || app["script"] != "server.js" {
		t.Errorf("unexpected app %v", app)
	}
	if app["min_uptime"] != float64(5000) {
		t.Errorf("expected numeric min_uptime, got %v", app["min_uptime"])
	}
	if _, ok := app["instances"]; ok {
		t.Error("zero instances should be omitted")
	}
	env := app["env"].(map[string]any)
	if env["namespace"] != "team-a" {
		t.Errorf("expected namespace env, got %v", env)
	}
}

// fakePM2 writes a shell script standing in for the pm2 binary. It serves
// jlist from a file and records every invocation. When afterStart is set,
// a start replaces the served list with it.
func fakePM2(t *testing.T, jlist, afterStart string) (binary, callsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	dir := t.TempDir()
	jlistFile := filepath.Join(dir, "jlist.json")
	callsFile = filepath.Join(dir, "calls.log")
	afterFile := filepath.Join(dir, "after.json")
	if err := os.WriteFile(jlistFile, []byte(jlist), 0644); err != nil {
		t.Fatalf("failed to write jlist: %v", err)
	}
	if afterStart == "" {
		afterStart = jlist
	}
	if err := os.WriteFile(afterFile, []byte(afterStart), 0644); err != nil {
		t.Fatalf("failed to write jlist: %v", err)
	}

	script := "#!/bin/sh\n" +
		"echo \"$PM2_HOME $*\" >> " + callsFile + "\n" +
		"case \"$1\" in\n" +
		"  ping) echo '{ msg: pong }' ;;\n" +
		"  jlist) cat " + jlistFile + " ;;\n" +
		"  start) cp " + afterFile + " " + jlistFile + " ;;\n" +
		"  fail) echo 'boom' >&2; exit 1 ;;\n" +
		"esac\n"
	binary = filepath.Join(dir, "pm2")
	if err := os.WriteFile(binary, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return binary, callsFile
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

const startedJList = `[{"pid":4242,"name":"api","pm_id":0,"pm2_env":{"status":"online","env":{}}},
 {"pid":0,"name":"worker","pm_id":1,"pm2_env":{"status":"stopped","env":{}}},
 {"pid":5151,"name":"web","pm_id":2,"pm2_env":{"status":"online","env":{"namespace":"team-b"}}}]`

func TestPM2_CommandLine(t *testing.T) {
	binary, callsFile := fakePM2(t, sampleJList, startedJList)
	home := t.TempDir()
	p := NewPM2(binary, home)
	ctx := context.Background()

	if err := p.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	procs, err := p.Describe(ctx, "api")
	if err != nil {
		t.Fatalf("failed to describe: %v", err)
	}
	if len(procs) != 1 || procs[0].ID != "0" {
		t.Fatalf("unexpected describe result %+v", procs)
	}

	byID, err := p.Describe(ctx, "1")
	if err != nil || len(byID) != 1 || byID[0].Name != "worker" {
		t.Fatalf("expected describe by pm_id to find worker, got %+v, %v", byID, err)
	}

	if err := p.Stop(ctx, "0"); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	if err := p.Reload(ctx, "0"); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	started, err := p.Start(ctx, models.StartSpec{Name: "web", Script: "server.js"})
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if started.ID != "2" {
		t.Errorf("expected started ID 2, got %s", started.ID)
	}

	calls := readCalls(t, callsFile)
	want := []string{home + " ping", home + " jlist", home + " jlist", home + " stop 0", home + " reload 0", home + " jlist"}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("call %d: expected %q, got %q", i, w, calls[i])
		}
	}
	if !strings.HasPrefix(calls[6], home+" start ") || !strings.HasSuffix(calls[6], ".config.json") {
		t.Errorf("expected start with an ecosystem file, got %q", calls[6])
	}
}

func TestPM2_StartRefusesRegisteredName(t *testing.T) {
	binary, callsFile := fakePM2(t, sampleJList, "")
	p := NewPM2(binary, "")

	_, err := p.Start(context.Background(), models.StartSpec{Name: "api", Script: "server.js"})
	if !errors.Is(err, ErrNameInUse) {
		t.Fatalf("expected ErrNameInUse, got %v", err)
	}
	for _, call := range readCalls(t, callsFile) {
		if strings.Contains(call, "start") {
			t.Errorf("pm2 start must not run for a registered name, got %q", call)
		}
	}
}

func TestPM2_MutationsRequirePMID(t *testing.T) {
	binary, callsFile := fakePM2(t, sampleJList, "")
	p := NewPM2(binary, "")
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context, string) error{
		"stop":    p.Stop,
		"restart": p.Restart,
		"reload":  p.Reload,
		"delete":  p.Delete,
	} {
		if err := fn(ctx, "api"); !errors.Is(err, ErrNoMatch) {
			t.Errorf("%s: expected ErrNoMatch for a name, got %v", name, err)
		}
	}
	if _, err := os.Stat(callsFile); !os.IsNotExist(err) {
		t.Errorf("expected pm2 never to be invoked, stat returned %v", err)
	}
}

func TestPM2_CommandFailure(t *testing.T) {
	binary, _ := fakePM2(t, "[]", "")
	p := NewPM2(binary, "")

	_, err := p.run(context.Background(), "fail")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestPM2_MissingBinary(t *testing.T) {
	p := NewPM2(filepath.Join(t.TempDir(), "no-such-pm2"), "")
	if err := p.Connect(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
