// Package resolve picks the artifact variant a descriptor offers for a platform.
package resolve

import (
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
)

// ErrUnsupportedPlatform is matched by *UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports that no enabled variant matches the platform.
type UnsupportedPlatformError struct {
	Package string
	OS      string
	Arch    string
	Bits    int
	// Disabled counts variants that matched but were disabled.
	Disabled int
}

func (e *UnsupportedPlatformError) Error() string {
	msg := fmt.Sprintf("%s: no artifact for %s/%s", e.Package, e.OS, e.Arch)
	if e.Bits != 0 {
		msg += fmt.Sprintf(" (%d-bit)", e.Bits)
	}
	if e.Disabled > 0 {
		msg += fmt.Sprintf("; %d matching variant(s) disabled", e.Disabled)
	}
	return msg
}

func (e *UnsupportedPlatformError) Unwrap() error {
	return ErrUnsupportedPlatform
}

// Resolve walks the variants in declaration order and returns the first
// enabled one whose constraint matches info. It performs no I/O.
func Resolve(desc *descriptor.PackageDescriptor, info *platform.Info) (descriptor.ArtifactVariant, error) {
	if desc == nil {
		return descriptor.ArtifactVariant{}, &descriptor.InvalidDescriptorError{Message: "descriptor is required"}
	}
	if len(desc.Artifacts) == 0 {
		return descriptor.ArtifactVariant{}, &descriptor.InvalidDescriptorError{
			Field:   "artifacts",
			Message: "at least one artifact variant is required",
		}
	}
	if info == nil {
		return descriptor.ArtifactVariant{}, fmt.Errorf("platform info is required")
	}

	disabled := 0
	for _, v := range desc.Artifacts {
		if !v.When.Matches(info) {
			continue
		}
		if !v.Enabled {
			disabled++
			continue
		}
		return v, nil
	}

	return descriptor.ArtifactVariant{}, &UnsupportedPlatformError{
		Package:  desc.Name,
		OS:       info.OS,
		Arch:     info.Arch,
		Bits:     info.Bits,
		Disabled: disabled,
	}
}

// Candidates returns every variant whose constraint matches info, enabled or
// not, in declaration order. It backs `keg resolve --all`.
func Candidates(desc *descriptor.PackageDescriptor, info *platform.Info) []descriptor.ArtifactVariant {
	if desc == nil || info == nil {
		return nil
	}
	var out []descriptor.ArtifactVariant
	for _, v := range desc.Artifacts {
		if v.When.Matches(info) {
			out = append(out, v)
		}
	}
	return out
}
