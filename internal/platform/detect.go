package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect performs platform detection and returns platform information.
// OS and architecture come from the runtime; the word size comes from the
// kernel architecture reported by gopsutil, so a 32-bit build of keg on a
// 64-bit CPU still resolves 64-bit artifacts.
//
// If gopsutil fails, detection falls back to runtime values only.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		Arch:    NormalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
		Bits:    WordSize(runtime.GOARCH),
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		// Graceful fallback: runtime values are enough to resolve most descriptors.
		return info, nil
	}

	if hostInfo.KernelArch != "" {
		info.ArchRaw = hostInfo.KernelArch
		if bits := WordSize(hostInfo.KernelArch); bits != 0 {
			info.Bits = bits
		}
	}

	if runtime.GOOS == "linux" {
		platform := normalizePlatform(hostInfo.Platform)
		if platform != "" {
			info.Platform = platform
			info.Family = mapFamily(hostInfo.PlatformFamily)
			info.Version = normalizePlatform(hostInfo.PlatformVersion)
		}
	}

	return info, nil
}
