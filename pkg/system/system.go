// Package system samples host resource usage for the health probe.
package system

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Stats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	Goroutines    int     `json:"goroutines"`
}

// GetCPUUsage returns the CPU usage since the previous call, as a percentage.
func GetCPUUsage() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

func GetMemoryUsage() (float64, error) {
	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return virtualMem.UsedPercent, nil
}

// Snapshot gathers what is available; a metric that cannot be read is left
// at zero and reported in the returned error.
func Snapshot() (Stats, error) {
	s := Stats{Goroutines: runtime.NumGoroutine()}
	cpuPct, cpuErr := GetCPUUsage()
	memPct, memErr := GetMemoryUsage()
	s.CPUPercent = cpuPct
	s.MemoryPercent = memPct
	if cpuErr != nil {
		return s, cpuErr
	}
	return s, memErr
}
