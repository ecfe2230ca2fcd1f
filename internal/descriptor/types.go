package descriptor

import (
	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
)

// DefaultTestArgs is the post-install smoke test used when a descriptor
// declares none: `<binary> version`.
var DefaultTestArgs = []string{"version"}

// ArchiveFormat names how a fetched artifact is packed.
type ArchiveFormat string

const (
	// ArchiveNone means the artifact is the executable itself.
	ArchiveNone ArchiveFormat = ""
	// ArchiveGzip is a single gzip-compressed executable.
	ArchiveGzip ArchiveFormat = "gz"
	// ArchiveTarGz is a gzip-compressed tarball.
	ArchiveTarGz ArchiveFormat = "tar.gz"
	// ArchiveTarXz is an xz-compressed tarball.
	ArchiveTarXz ArchiveFormat = "tar.xz"
	// ArchiveTarZst is a zstd-compressed tarball.
	ArchiveTarZst ArchiveFormat = "tar.zst"
	// ArchiveZip is a zip file.
	ArchiveZip ArchiveFormat = "zip"
)

// IsValid reports whether the format is one keg can unpack.
func (a ArchiveFormat) IsValid() bool {
	switch a {
	case ArchiveNone, ArchiveGzip, ArchiveTarGz, ArchiveTarXz, ArchiveTarZst, ArchiveZip:
		return true
	default:
		return false
	}
}

// String returns the format name, "raw" for an unpacked executable.
func (a ArchiveFormat) String() string {
	if a == ArchiveNone {
		return "raw"
	}
	return string(a)
}

// SigstoreBundle points at a keyless signature bundle for an artifact.
type SigstoreBundle struct {
	// URL of the .sigstore.json bundle.
	URL string `json:"bundle_url"`
	// Issuer is the expected OIDC issuer of the signing certificate.
	Issuer string `json:"issuer"`
	// Identity is a regular expression matched against the certificate SAN.
	Identity string `json:"identity"`
}

// ArtifactVariant is one platform-specific artifact source.
type ArtifactVariant struct {
	// When guards the variant; the zero value matches every platform.
	When platform.Constraint
	// Enabled variants take part in resolution. Disabled ones are kept
	// for reference only.
	Enabled bool
	// URL the artifact is fetched from.
	URL string
	// SHA256 is the lowercase hex digest of the fetched bytes.
	SHA256 string
	// SignatureURL optionally points at an OpenPGP detached signature.
	SignatureURL string
	// Sigstore optionally describes a sigstore bundle for the artifact.
	Sigstore *SigstoreBundle
	// Archive tells the installer how to unpack the artifact.
	Archive ArchiveFormat
	// Binary is the archive member to install. Empty means the package name.
	Binary string
}

// PackageDescriptor describes how to obtain and verify one package.
// It is constructed once by the loaders and treated as read-only.
type PackageDescriptor struct {
	Name        string
	Description string
	Homepage    string
	Version     string
	Artifacts   []ArtifactVariant
	// Test holds the arguments of the post-install smoke test.
	Test []string
}

// TestArgs returns the smoke test arguments, defaulting to DefaultTestArgs.
func (d *PackageDescriptor) TestArgs() []string {
	if len(d.Test) == 0 {
		return append([]string(nil), DefaultTestArgs...)
	}
	return append([]string(nil), d.Test...)
}

// EnabledArtifacts returns the variants taking part in resolution, in
// declaration order.
func (d *PackageDescriptor) EnabledArtifacts() []ArtifactVariant {
	var out []ArtifactVariant
	for _, v := range d.Artifacts {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}
