package descriptor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ChecksumLength is the length of a hex-encoded SHA-256 digest.
const ChecksumLength = 64

var (
	checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
	// namePattern keeps package names usable as a single path element.
	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
)

// ValidName reports whether name is an acceptable package name.
func ValidName(name string) bool {
	return len(name) <= 128 && namePattern.MatchString(name)
}

// Validate checks the descriptor invariants and normalizes checksums to
// lowercase. It returns *InvalidDescriptorError for the first violation.
func (d *PackageDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &InvalidDescriptorError{Field: "name", Message: "name cannot be empty"}
	}
	if !ValidName(d.Name) {
		return &InvalidDescriptorError{Field: "name", Message: fmt.Sprintf("%q is not a valid package name", d.Name)}
	}

	if strings.TrimSpace(d.Version) == "" {
		return &InvalidDescriptorError{Field: "version", Message: "version cannot be empty"}
	}

	if d.Homepage != "" {
		if err := validateHTTPURL(d.Homepage); err != nil {
			return &InvalidDescriptorError{Field: "homepage", Message: err.Error()}
		}
	}

	if len(d.Artifacts) == 0 {
		return &InvalidDescriptorError{Field: "artifacts", Message: "at least one artifact variant is required"}
	}

	for i := range d.Artifacts {
		if err := d.Artifacts[i].validate(); err != nil {
			err.Field = fmt.Sprintf("artifacts[%d].%s", i, err.Field)
			return err
		}
	}

	for i, arg := range d.Test {
		if strings.ContainsRune(arg, 0) {
			return &InvalidDescriptorError{Field: fmt.Sprintf("test[%d]", i), Message: "argument contains a NUL byte"}
		}
	}

	return nil
}

// validate checks one variant. Field names are relative to the variant.
func (v *ArtifactVariant) validate() *InvalidDescriptorError {
	v.SHA256 = strings.ToLower(strings.TrimSpace(v.SHA256))

	if err := v.When.Validate(); err != nil {
		return &InvalidDescriptorError{Field: "when", Message: err.Error()}
	}

	if v.SHA256 != "" {
		if err := ValidateChecksum(v.SHA256); err != nil {
			return &InvalidDescriptorError{Field: "sha256", Message: err.Error()}
		}
	}

	if !v.Archive.IsValid() {
		return &InvalidDescriptorError{Field: "archive", Message: fmt.Sprintf("unsupported archive format %q", string(v.Archive))}
	}

	if v.Binary != "" && (strings.ContainsAny(v.Binary, `\`) || strings.Contains(v.Binary, "..")) {
		return &InvalidDescriptorError{Field: "binary", Message: fmt.Sprintf("invalid archive member %q", v.Binary)}
	}

	// Disabled variants are authored but inactive; only their
	// checksum format is enforced.
	if !v.Enabled {
		return nil
	}

	if v.SHA256 == "" {
		return &InvalidDescriptorError{Field: "sha256", Message: "enabled variant must declare a sha256 checksum"}
	}

	if err := validateHTTPURL(v.URL); err != nil {
		return &InvalidDescriptorError{Field: "url", Message: err.Error()}
	}

	if v.SignatureURL != "" {
		if err := validateHTTPURL(v.SignatureURL); err != nil {
			return &InvalidDescriptorError{Field: "signature_url", Message: err.Error()}
		}
	}

	if v.Sigstore != nil {
		if err := validateHTTPURL(v.Sigstore.URL); err != nil {
			return &InvalidDescriptorError{Field: "sigstore.bundle_url", Message: err.Error()}
		}
		if v.Sigstore.Issuer == "" || v.Sigstore.Identity == "" {
			return &InvalidDescriptorError{Field: "sigstore", Message: "issuer and identity are required"}
		}
		if _, err := regexp.Compile(v.Sigstore.Identity); err != nil {
			return &InvalidDescriptorError{Field: "sigstore.identity", Message: err.Error()}
		}
	}

	return nil
}

// ValidateChecksum checks that s is exactly 64 hex characters.
func ValidateChecksum(s string) error {
	if len(s) != ChecksumLength {
		return fmt.Errorf("checksum must be %d hex characters, got %d", ChecksumLength, len(s))
	}
	if !checksumPattern.MatchString(strings.ToLower(s)) {
		return fmt.Errorf("checksum %q is not hex encoded", s)
	}
	return nil
}

// validateHTTPURL requires an absolute http or https URL with a host.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url must use https:// or http:// scheme (got: %q)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}

	return nil
}
