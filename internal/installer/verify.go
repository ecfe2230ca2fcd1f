package installer

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/sigstore/sigstore-go/pkg/bundle"
	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore-go/pkg/verify"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
)

var errNoChecksum = errors.New("no sha256 checksum declared")

// Verifier handles cryptographic verification of fetched artifacts
type Verifier struct {
	keyringPath     string
	trustedRootPath string
}

// NewVerifier creates a new verifier. keyringPath is an OpenPGP keyring used
// for detached signatures; trustedRootPath is a sigstore trusted_root.json.
// Either may be empty: signatures then fail, and the sigstore public-good
// trusted root is fetched on demand.
func NewVerifier(keyringPath, trustedRootPath string) *Verifier {
	return &Verifier{
		keyringPath:     keyringPath,
		trustedRootPath: trustedRootPath,
	}
}

// VerifyChecksum hashes the file at path and compares the digest with
// expected in constant time. It returns the actual hex digest.
func (v *Verifier) VerifyChecksum(url, path, expected string) (string, error) {
	if expected == "" {
		return "", &IntegrityError{URL: url, Method: VerificationSHA256, Err: errNoChecksum}
	}

	want, err := hex.DecodeString(strings.ToLower(expected))
	if err != nil || len(want) != sha256.Size {
		return "", &IntegrityError{
			URL:      url,
			Method:   VerificationSHA256,
			Expected: expected,
			Err:      fmt.Errorf("malformed checksum %q", expected),
		}
	}

	got, err := calculateSHA256(path)
	if err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}
	actual := hex.EncodeToString(got)

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return actual, &IntegrityError{
			URL:      url,
			Method:   VerificationSHA256,
			Expected: strings.ToLower(expected),
			Actual:   actual,
		}
	}

	return actual, nil
}

// VerifySignature checks an OpenPGP detached signature (armored or binary)
// over the file at path.
func (v *Verifier) VerifySignature(url, path, signaturePath string) error {
	fail := func(err error) error {
		return &IntegrityError{URL: url, Method: VerificationGPG, Err: err}
	}

	if v.keyringPath == "" {
		return fail(errors.New("no keyring configured"))
	}

	keyring, err := loadKeyring(v.keyringPath)
	if err != nil {
		return fail(fmt.Errorf("load keyring: %w", err))
	}

	binaryFile, err := os.Open(path)
	if err != nil {
		return fail(fmt.Errorf("open artifact: %w", err))
	}
	defer binaryFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fail(fmt.Errorf("open signature: %w", err))
	}
	defer sigFile.Close()

	// Verify signature (try armored first)
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, binaryFile, sigFile, nil)
	if err != nil {
		binaryFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, binaryFile, sigFile, nil)
	}
	if err != nil {
		return fail(fmt.Errorf("verify signature: %w", err))
	}

	return nil
}

// VerifyBundle checks a sigstore bundle over the file at path: the signing
// certificate must chain to the trusted root, carry the expected OIDC issuer
// and a SAN matching spec.Identity, and be logged in the transparency log.
func (v *Verifier) VerifyBundle(url, path, bundlePath string, spec *descriptor.SigstoreBundle) error {
	fail := func(err error) error {
		return &IntegrityError{URL: url, Method: VerificationSigstore, Err: err}
	}

	if spec == nil {
		return fail(errors.New("no sigstore identity declared"))
	}

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return fail(fmt.Errorf("read bundle: %w", err))
	}

	b := &bundle.Bundle{}
	if err := b.UnmarshalJSON(data); err != nil {
		return fail(fmt.Errorf("parse bundle: %w", err))
	}

	identity, err := verify.NewShortCertificateIdentity(spec.Issuer, "", "", spec.Identity)
	if err != nil {
		return fail(fmt.Errorf("certificate identity: %w", err))
	}

	trusted, err := v.trustedMaterial()
	if err != nil {
		return fail(fmt.Errorf("load trusted root: %w", err))
	}

	verifier, err := verify.NewVerifier(trusted,
		verify.WithSignedCertificateTimestamps(1),
		verify.WithTransparencyLog(1),
		verify.WithObserverTimestamps(1),
	)
	if err != nil {
		return fail(fmt.Errorf("create verifier: %w", err))
	}

	artifact, err := os.Open(path)
	if err != nil {
		return fail(fmt.Errorf("open artifact: %w", err))
	}
	defer artifact.Close()

	policy := verify.NewPolicy(verify.WithArtifact(artifact), verify.WithCertificateIdentity(identity))
	if _, err := verifier.Verify(b, policy); err != nil {
		return fail(err)
	}

	return nil
}

func (v *Verifier) trustedMaterial() (root.TrustedMaterial, error) {
	if v.trustedRootPath != "" {
		return root.NewTrustedRootFromPath(v.trustedRootPath)
	}
	return root.FetchTrustedRoot()
}

// loadKeyring loads an OpenPGP keyring, armored or binary
func loadKeyring(keyringPath string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		keyringFile.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// calculateSHA256 calculates the SHA256 digest of a file
func calculateSHA256(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, err
	}

	return hasher.Sum(nil), nil
}
