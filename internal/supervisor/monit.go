package supervisor

import (
	"github.com/shirou/gopsutil/v3/process"
)

// sampleUsage reads CPU percent and resident memory for a host PID. Zero
// values are returned when the process cannot be inspected.
func sampleUsage(pid int) (float64, uint64) {
	if pid <= 0 {
		return 0, 0
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, 0
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		cpu = 0
	}

	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	return cpu, rss
}
