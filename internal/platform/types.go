// Package platform describes the machine keg is installing onto.
//
// It detects OS, architecture and CPU word size, and defines Constraint, the
// platform condition an artifact variant is guarded by. Detection is kept
// behind the Detector interface so resolution can be exercised with fake
// platforms.
package platform

import (
	"context"
	"fmt"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // normalized GOARCH-style name ("amd64", "arm64", "386", "arm")
	ArchRaw  string // kernel-reported architecture (e.g., "x86_64", "aarch64")
	Bits     int    // CPU word size, 32 or 64 (0 when unknown)
	Platform string // distro ID (Linux only, e.g., "ubuntu", "arch")
	Family   string // canonical family (e.g., "debian", "rhel", "arch")
	Version  string // distro version (Linux only, e.g., "22.04")
}

// String renders the OS/architecture pair, e.g. "darwin/amd64".
func (i *Info) String() string {
	if i == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s/%s", i.OS, i.Arch)
}

// Is64Bit returns true if the CPU word size is 64 bits.
func (i *Info) Is64Bit() bool {
	return i.Bits == 64
}

// Is32Bit returns true if the CPU word size is 32 bits.
func (i *Info) Is32Bit() bool {
	return i.Bits == 32
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It backs the --os/--arch overrides
// and tests that need a fake platform.
type StaticDetector struct {
	Info *Info
}

// NewStaticDetector creates a detector that always reports info.
// A missing word size is derived from the architecture.
func NewStaticDetector(info Info) Detector {
	info.Arch = NormalizeArch(info.Arch)
	if info.Bits == 0 {
		info.Bits = WordSize(info.Arch)
	}
	return &StaticDetector{Info: &info}
}

// Detect returns a copy of the configured info.
func (s *StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Info == nil {
		return nil, fmt.Errorf("static detector has no platform info")
	}
	info := *s.Info
	return &info, nil
}
