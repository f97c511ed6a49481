package models

import "time"

// NamespaceEnvKey is the environment variable that tags a process with its namespace.
const NamespaceEnvKey = "namespace"

// ProcessStatus is the supervisor-reported state of a process.
type ProcessStatus string

const (
	// StatusOnline indicates the process is running.
	StatusOnline ProcessStatus = "online"
	// StatusStopped indicates the process was stopped.
	StatusStopped ProcessStatus = "stopped"
	// StatusErrored indicates the process exited abnormally.
	StatusErrored ProcessStatus = "errored"
	// StatusLaunching indicates the process is starting.
	StatusLaunching ProcessStatus = "launching"
	// StatusUnknown is used when the backend reports something else.
	StatusUnknown ProcessStatus = "unknown"
)

// Process describes one managed process as reported by the supervisor.
type Process struct {
	CreatedAt  time.Time         `json:"created_at"`
	Env        map[string]string `json:"env"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     ProcessStatus     `json:"status"`
	OutLogPath string            `json:"out_log_path"`
	ErrLogPath string            `json:"err_log_path"`
	Backend    string            `json:"backend"`
	Uptime     int64             `json:"uptime"` // seconds
	Memory     uint64            `json:"memory"` // bytes
	CPU        float64           `json:"cpu"`    // percent
	PID        int               `json:"pid"`
	Restarts   int               `json:"restarts"`
}

// Namespace returns the namespace tag, or "" for untagged processes.
func (p *Process) Namespace() string {
	if p.Env == nil {
		return ""
	}
	return p.Env[NamespaceEnvKey]
}

// StartSpec is the typed start request submitted to a supervisor.
type StartSpec struct {
	Env         map[string]string `json:"env"`
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Image       string            `json:"image"`
	Cwd         string            `json:"cwd"`
	Interpreter string            `json:"interpreter"`
	Namespace   string            `json:"namespace"`
	Args        []string          `json:"args"`
	Instances   int               `json:"instances"`
	MinUptime   int               `json:"min_uptime"` // milliseconds
	MaxRestarts int               `json:"max_restarts"`
}

// ProcessLogs holds the tail of a process's stdout and stderr logs.
type ProcessLogs struct {
	Out   []string `json:"out"`
	Error []string `json:"error"`
}
