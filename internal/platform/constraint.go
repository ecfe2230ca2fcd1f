package platform

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Constraint is the platform condition guarding an artifact variant.
// Empty OS or Arch lists match any value and a zero Bits matches any word size.
type Constraint struct {
	OS   []string `json:"os,omitempty"`
	Arch []string `json:"arch,omitempty"`
	Bits int      `json:"bits,omitempty"`
}

// namedConstraints are the predicates a descriptor can reference by name.
var namedConstraints = map[string]Constraint{
	"any":              {},
	"is_64_bit":        {Bits: 64},
	"is_32_bit":        {Bits: 32},
	"is_amd64":         {Arch: []string{"amd64"}},
	"is_arm64":         {Arch: []string{"arm64"}},
	"is_macos":         {OS: []string{"darwin"}},
	"is_linux":         {OS: []string{"linux"}},
	"is_apple_silicon": {OS: []string{"darwin"}, Arch: []string{"arm64"}},
}

// NamedConstraint looks up a predicate such as "is_64_bit".
func NamedConstraint(name string) (Constraint, bool) {
	c, ok := namedConstraints[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ConstraintNames returns the sorted list of named predicates.
func ConstraintNames() []string {
	names := make([]string, 0, len(namedConstraints))
	for name := range namedConstraints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize lowercases OS names and maps architecture aliases to GOARCH names.
func (c Constraint) Normalize() Constraint {
	out := Constraint{Bits: c.Bits}
	for _, os := range c.OS {
		out.OS = append(out.OS, normalizePlatform(os))
	}
	for _, arch := range c.Arch {
		out.Arch = append(out.Arch, NormalizeArch(arch))
	}
	return out
}

// Validate rejects word sizes other than 0, 32 and 64 and blank entries.
func (c Constraint) Validate() error {
	if c.Bits != 0 && c.Bits != 32 && c.Bits != 64 {
		return fmt.Errorf("bits must be 32 or 64, got %d", c.Bits)
	}
	if slices.Contains(c.OS, "") {
		return fmt.Errorf("os entries cannot be empty")
	}
	if slices.Contains(c.Arch, "") {
		return fmt.Errorf("arch entries cannot be empty")
	}
	return nil
}

// Matches reports whether the platform satisfies the constraint.
func (c Constraint) Matches(info *Info) bool {
	if info == nil {
		return false
	}
	if len(c.OS) > 0 && !slices.Contains(c.OS, normalizePlatform(info.OS)) {
		return false
	}
	if len(c.Arch) > 0 && !slices.Contains(c.Arch, NormalizeArch(info.Arch)) {
		return false
	}
	if c.Bits != 0 && c.Bits != info.Bits {
		return false
	}
	return true
}

// String renders the constraint for logs, e.g. "os=darwin bits=64".
func (c Constraint) String() string {
	var parts []string
	if len(c.OS) > 0 {
		parts = append(parts, "os="+strings.Join(c.OS, "|"))
	}
	if len(c.Arch) > 0 {
		parts = append(parts, "arch="+strings.Join(c.Arch, "|"))
	}
	if c.Bits != 0 {
		parts = append(parts, fmt.Sprintf("bits=%d", c.Bits))
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}
