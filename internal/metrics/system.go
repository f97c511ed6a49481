// Package metrics samples host resource usage for the operator endpoint.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// cpuSampleWindow is how long CPU usage is measured for.
const cpuSampleWindow = 200 * time.Millisecond

// HostMetrics is a point-in-time snapshot of the machine running the supervisor.
type HostMetrics struct {
	CollectedAt time.Time     `json:"collected_at"`
	Hostname    string        `json:"hostname"`
	Platform    string        `json:"platform"`
	Kernel      string        `json:"kernel"`
	LoadAvg     []float64     `json:"load_avg"` // 1, 5, 15 min
	CPU         CPUMetrics    `json:"cpu"`
	Memory      MemoryMetrics `json:"memory"`
	Disk        *DiskMetrics  `json:"disk,omitempty"`
	Uptime      int64         `json:"uptime"` // seconds
}

// CPUMetrics represents CPU usage information.
type CPUMetrics struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
}

// MemoryMetrics represents memory usage information.
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
}

// DiskMetrics is usage of the filesystem holding a watched path.
type DiskMetrics struct {
	Path        string  `json:"path"`
	Filesystem  string  `json:"filesystem"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// CollectHost samples CPU, memory, load and uptime in parallel. When
// diskPath is set, usage of the filesystem containing it is included.
// Individual probes that fail leave their section zeroed.
func CollectHost(ctx context.Context, diskPath string) (*HostMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &HostMetrics{CollectedAt: time.Now().UTC()}
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		percent, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
		cores, _ := cpu.CountsWithContext(ctx, true)
		mu.Lock()
		defer mu.Unlock()
		if err == nil && len(percent) > 0 {
			m.CPU.UsagePercent = percent[0]
		}
		m.CPU.Cores = cores
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		vmem, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return
		}
		swap, swapErr := mem.SwapMemoryWithContext(ctx)

		mu.Lock()
		defer mu.Unlock()
		m.Memory = MemoryMetrics{
			Total:       vmem.Total,
			Used:        vmem.Used,
			Available:   vmem.Available,
			UsedPercent: vmem.UsedPercent,
		}
		if swapErr == nil {
			m.Memory.SwapTotal = swap.Total
			m.Memory.SwapUsed = swap.Used
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		info, err := host.InfoWithContext(ctx)
		avg, loadErr := load.AvgWithContext(ctx)

		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			m.Hostname = info.Hostname
			m.Platform = info.Platform
			m.Kernel = info.KernelVersion
			m.Uptime = int64(info.Uptime)
		}
		if loadErr == nil {
			m.LoadAvg = []float64{avg.Load1, avg.Load5, avg.Load15}
		}
	}()

	if diskPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, err := disk.UsageWithContext(ctx, diskPath)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			m.Disk = &DiskMetrics{
				Path:        diskPath,
				Filesystem:  usage.Fstype,
				Total:       usage.Total,
				Used:        usage.Used,
				Available:   usage.Free,
				UsedPercent: usage.UsedPercent,
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
