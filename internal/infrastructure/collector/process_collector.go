package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

// ProcessCollector reports the service's own resource usage for heartbeats.
// It implements port.ResourceCollector.
type ProcessCollector struct {
	proc *process.Process
}

// NewProcessCollector attaches to the current process.
func NewProcessCollector() (*ProcessCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open current process: %w", err)
	}
	return &ProcessCollector{proc: proc}, nil
}

// Collect gathers process and system memory statistics in parallel. Partial
// results are returned together with the joined errors.
func (c *ProcessCollector) Collect(ctx context.Context) (port.ResourceStats, error) {
	stats := port.ResourceStats{Goroutines: runtime.NumGoroutine()}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		info, err := c.proc.MemoryInfoWithContext(ctx)
		if err != nil {
			record(fmt.Errorf("process memory: %w", err))
			return
		}
		mu.Lock()
		stats.RSSBytes = info.RSS
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		pct, err := c.proc.CPUPercentWithContext(ctx)
		if err != nil {
			record(fmt.Errorf("process cpu: %w", err))
			return
		}
		mu.Lock()
		stats.CPUPercent = pct
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			record(fmt.Errorf("system memory: %w", err))
			return
		}
		mu.Lock()
		stats.SystemMemoryPercent = vm.UsedPercent
		stats.SystemMemoryUsed = vm.Used
		stats.SystemMemoryTotal = vm.Total
		mu.Unlock()
	}()
	wg.Wait()

	return stats, errors.Join(errs...)
}
