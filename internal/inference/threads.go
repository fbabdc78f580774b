package inference

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// threadCount resolves the configured interpreter thread count. Zero selects
// the number of physical cores; the result never exceeds the logical CPU count.
func threadCount(configured int) int {
	systemCPUs := runtime.NumCPU()

	if configured <= 0 {
		if physical := cpuid.CPU.PhysicalCores; physical > 0 {
			return min(physical, systemCPUs)
		}
		return systemCPUs
	}

	return min(configured, systemCPUs)
}
