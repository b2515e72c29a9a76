// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Process and host probes backed by gopsutil.

package control

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Probe names registered by RegisterPlatformProbes.
const (
	ProbeCPUs        = "platform.cpus"
	ProbeGoroutines  = "process.goroutines"
	ProbeRSS         = "process.rss_bytes"
	ProbeCPUPercent  = "process.cpu_percent"
	ProbeThreads     = "process.threads"
	ProbeOpenFDs     = "process.open_fds"
	ProbeHostMemUsed = "host.mem_used_percent"
)

// RegisterPlatformProbes registers probes for the current process and host.
// Probes whose source is unavailable on this platform report nil.
func RegisterPlatformProbes(dp *DebugProbes) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	dp.RegisterProbe(ProbeCPUs, func() any {
		if n, err := cpu.Counts(true); err == nil {
			return n
		}
		return runtime.NumCPU()
	})
	dp.RegisterProbe(ProbeGoroutines, func() any {
		return runtime.NumGoroutine()
	})
	dp.RegisterProbe(ProbeRSS, func() any {
		mi, err := self.MemoryInfo()
		if err != nil || mi == nil {
			return nil
		}
		return mi.RSS
	})
	dp.RegisterProbe(ProbeCPUPercent, func() any {
		pct, err := self.CPUPercent()
		if err != nil {
			return nil
		}
		return pct
	})
	dp.RegisterProbe(ProbeThreads, func() any {
		n, err := self.NumThreads()
		if err != nil {
			return nil
		}
		return n
	})
	dp.RegisterProbe(ProbeOpenFDs, func() any {
		n, err := self.NumFDs()
		if err != nil {
			return nil
		}
		return n
	})
	dp.RegisterProbe(ProbeHostMemUsed, func() any {
		vm, err := mem.VirtualMemory()
		if err != nil || vm == nil {
			return nil
		}
		return vm.UsedPercent
	})
	return nil
}
