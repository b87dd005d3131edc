package hardware

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// Mode is an operating mode trading search quality for resource footprint.
type Mode string

const (
	ModeEco         Mode = "eco"
	ModeBalanced    Mode = "balanced"
	ModePerformance Mode = "performance"
)

// Profile describes the machine lumen is running on.
type Profile struct {
	TotalRAMGB      float64
	AvailableRAMGB  float64
	CPUCores        int
	CPUThreads      int
	CPUArchitecture string
	HasGPU          bool
	GPUType         string
	GPUCount        int
	Platform        string
}

// RecommendedMode derives the operating mode from available memory, mirroring
// the thresholds a constrained device would need: below 2GB runs eco, below
// 4GB runs balanced, otherwise performance.
func (p Profile) RecommendedMode() Mode {
	switch {
	case p.AvailableRAMGB < 2:
		return ModeEco
	case p.AvailableRAMGB < 4:
		return ModeBalanced
	default:
		return ModePerformance
	}
}

// DetectProfile reads live host memory, CPU topology, and platform info.
// A failure to read memory is fatal: every mode decision depends on it.
func DetectProfile(ctx context.Context) (Profile, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Profile{}, lumenerrors.ResourceErr("failed to read system memory", err)
	}

	physicalCores, err := cpu.CountsWithContext(ctx, false)
	if err != nil || physicalCores == 0 {
		physicalCores = runtime.NumCPU()
	}
	logicalCores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || logicalCores == 0 {
		logicalCores = runtime.NumCPU()
	}

	platform := runtime.GOOS
	if info, err := host.InfoWithContext(ctx); err == nil && info.Platform != "" {
		platform = info.Platform
	}

	profile := Profile{
		TotalRAMGB:      bytesToGB(vm.Total),
		AvailableRAMGB:  bytesToGB(vm.Available),
		CPUCores:        physicalCores,
		CPUThreads:      logicalCores,
		CPUArchitecture: runtime.GOARCH,
		Platform:        platform,
	}

	detectGPU(ctx, &profile)

	return profile, nil
}

func bytesToGB(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

// detectGPU is a best-effort probe; the absence of a GPU library in this
// corpus means we shell out to platform tools rather than fail the whole
// detection when nothing is found.
func detectGPU(ctx context.Context, profile *Profile) {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType").Output()
		if err != nil {
			return
		}
		text := string(out)
		if strings.Contains(text, "Chipset Model:") {
			profile.HasGPU = true
			profile.GPUCount = strings.Count(text, "Chipset Model:")
			if strings.Contains(text, "Apple M") {
				profile.GPUType = "apple_silicon"
			} else {
				profile.GPUType = "discrete"
			}
		}
	case "linux":
		if out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output(); err == nil {
			lines := strings.Split(strings.TrimSpace(string(out)), "\n")
			if len(lines) > 0 && lines[0] != "" {
				profile.HasGPU = true
				profile.GPUType = "nvidia"
				profile.GPUCount = len(lines)
			}
		}
	}
}
