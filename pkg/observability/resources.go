package observability

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceMonitor samples the resource usage of the current process.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
	mu           sync.Mutex
}

// NewResourceMonitor creates a resource monitor for the current process.
func NewResourceMonitor(ctx context.Context) (*ResourceMonitor, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, err
	}

	rm := &ResourceMonitor{
		process:   proc,
		startTime: time.Now(),
	}
	if cpuTime, err := proc.TimesWithContext(ctx); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm, nil
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64 `json:"cpu_percent"`
	MemoryRSS             uint64  `json:"memory_rss"`
	MemoryVMS             uint64  `json:"memory_vms"`
	HeapAlloc             uint64  `json:"heap_alloc"`
	SystemMemoryPercent   float64 `json:"system_memory_percent"`
	SystemMemoryAvailable uint64  `json:"system_memory_available"`
	GoroutineCount        int     `json:"goroutines"`
	ThreadCount           int32   `json:"threads"`
}

// Sample returns current resource usage. Fields the platform cannot report
// are left zero; only a failed RSS read is an error.
func (rm *ResourceMonitor) Sample(ctx context.Context) (ResourceUsage, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var usage ResourceUsage

	// CPU usage averaged since the monitor was created
	if cpuTime, err := rm.process.TimesWithContext(ctx); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
		}
	}

	memInfo, err := rm.process.MemoryInfoWithContext(ctx)
	if err != nil {
		return usage, err
	}
	usage.MemoryRSS = memInfo.RSS
	usage.MemoryVMS = memInfo.VMS

	if vmStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	usage.HeapAlloc = memStats.HeapAlloc

	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = rm.process.NumThreadsWithContext(ctx)

	return usage, nil
}
