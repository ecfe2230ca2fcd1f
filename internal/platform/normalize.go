package platform

import (
	"strings"
)

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// archAliases maps kernel and vendor architecture spellings onto GOARCH names.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"x64":     "amd64",
	"aarch64": "arm64",
	"arm64e":  "arm64",
	"i386":    "386",
	"i686":    "386",
	"x86":     "386",
	"armv6l":  "arm",
	"armv7l":  "arm",
	"armhf":   "arm",
}

// wordSizes lists the CPU word size of every GOARCH keg knows about.
var wordSizes = map[string]int{
	"amd64":    64,
	"arm64":    64,
	"ppc64":    64,
	"ppc64le":  64,
	"mips64":   64,
	"mips64le": 64,
	"riscv64":  64,
	"s390x":    64,
	"loong64":  64,
	"386":      32,
	"arm":      32,
	"mips":     32,
	"mipsle":   32,
	"wasm":     32,
}

// NormalizeArch converts an architecture spelling to its GOARCH name.
// Unknown names are returned lowercased.
func NormalizeArch(arch string) string {
	a := strings.ToLower(strings.TrimSpace(arch))
	if canonical, ok := archAliases[a]; ok {
		return canonical
	}
	return a
}

// WordSize returns 32 or 64 for a known architecture and 0 otherwise.
func WordSize(arch string) int {
	return wordSizes[NormalizeArch(arch)]
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if canonical, ok := familyMap[normalized]; ok {
		return canonical
	}
	return FamilyUnknown
}
