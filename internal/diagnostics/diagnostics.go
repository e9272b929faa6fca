// Package diagnostics captures a snapshot of host load for logging when the
// capture pipeline falls behind.
package diagnostics

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/voicecap/internal/logger"
)

// SystemSnapshot is a point-in-time view of host resources
type SystemSnapshot struct {
	CPUBrand        string  `json:"cpu_brand"`
	LogicalCores    int     `json:"logical_cores"`
	SIMD            string  `json:"simd"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemUsedPercent  float64 `json:"mem_used_percent"`
	SwapUsedPercent float64 `json:"swap_used_percent"`
	HeapAllocMiB    uint64  `json:"heap_alloc_mib"`
	NumGC           uint32  `json:"num_gc"`
	Goroutines      int     `json:"goroutines"`
}

// CaptureSystemInfo collects a snapshot. Probes that fail leave their field
// zero; the call never blocks on a sampling window.
func CaptureSystemInfo() SystemSnapshot {
	snap := SystemSnapshot{
		CPUBrand:     cpuid.CPU.BrandName,
		LogicalCores: cpuid.CPU.LogicalCores,
		SIMD:         simdLevel(),
		Goroutines:   runtime.NumGoroutine(),
	}

	// interval 0 compares against the previous call instead of sleeping
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemUsedPercent = vm.UsedPercent
	}

	if swap, err := mem.SwapMemory(); err == nil {
		snap.SwapUsedPercent = swap.UsedPercent
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snap.HeapAllocMiB = bToMb(m.HeapAlloc)
	snap.NumGC = m.NumGC

	return snap
}

// Fields renders the snapshot as log fields
func (s SystemSnapshot) Fields() []logger.Field {
	return []logger.Field{
		logger.String("cpu_brand", s.CPUBrand),
		logger.Int("logical_cores", s.LogicalCores),
		logger.String("simd", s.SIMD),
		logger.Float64("cpu_percent", s.CPUPercent),
		logger.Float64("mem_used_percent", s.MemUsedPercent),
		logger.Float64("swap_used_percent", s.SwapUsedPercent),
		logger.Uint64("heap_alloc_mib", s.HeapAllocMiB),
		logger.Int("num_gc", int(s.NumGC)),
		logger.Int("goroutines", s.Goroutines),
	}
}

// simdLevel reports the widest vector extension the enhancement math can use
func simdLevel() string {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3):
		return "avx2"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		return "neon"
	case cpuid.CPU.Supports(cpuid.SSE2):
		return "sse2"
	default:
		return "none"
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
