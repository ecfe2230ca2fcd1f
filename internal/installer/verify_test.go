package installer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
)

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newTestKeyring generates a signing key and writes its armored public key.
func newTestKeyring(t *testing.T, dir string) (*openpgp.Entity, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("keg test", "", "test@example.com", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("serialize key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}

	return entity, writeFile(t, filepath.Join(dir, "keyring.asc"), buf.Bytes())
}

func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	data := []byte("unseal binary")
	path := writeFile(t, filepath.Join(dir, "artifact"), data)
	digest := sha256Hex(data)

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{"match", digest, false},
		{"match_uppercase", strings.ToUpper(digest), false},
		{"mismatch", strings.Repeat("a", 64), true},
		{"empty", "", true},
		{"malformed", "xyz", true},
		{"truncated", digest[:63], true},
	}

	v := NewVerifier("", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := v.VerifyChecksum("https://example.com/unseal", path, tt.expected)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if actual != digest {
					t.Errorf("actual = %s, want %s", actual, digest)
				}
				return
			}

			var integrityErr *IntegrityError
			if !errors.As(err, &integrityErr) {
				t.Fatalf("expected *IntegrityError, got %v", err)
			}
			if integrityErr.Method != VerificationSHA256 {
				t.Errorf("Method = %v", integrityErr.Method)
			}
			if !errors.Is(err, ErrIntegrity) {
				t.Error("error does not match ErrIntegrity")
			}
		})
	}
}

func TestVerifyChecksumMismatchReportsDigests(t *testing.T) {
	dir := t.TempDir()
	data := []byte("unseal binary")
	path := writeFile(t, filepath.Join(dir, "artifact"), data)
	expected := strings.Repeat("a", 64)

	_, err := NewVerifier("", "").VerifyChecksum("https://example.com/unseal", path, expected)

	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected *IntegrityError, got %v", err)
	}
	if integrityErr.Expected != expected || integrityErr.Actual != sha256Hex(data) {
		t.Errorf("unexpected digests: %+v", integrityErr)
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("error %q should mention a checksum mismatch", err.Error())
	}
}

func TestVerifySignature(t *testing.T) {
	dir := t.TempDir()
	entity, keyringPath := newTestKeyring(t, dir)

	data := []byte("unseal binary")
	artifact := writeFile(t, filepath.Join(dir, "artifact"), data)

	var armored bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&armored, entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("sign: %v", err)
	}
	armoredSig := writeFile(t, filepath.Join(dir, "artifact.asc"), armored.Bytes())

	var binary bytes.Buffer
	if err := openpgp.DetachSign(&binary, entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("sign: %v", err)
	}
	binarySig := writeFile(t, filepath.Join(dir, "artifact.sig"), binary.Bytes())

	tampered := writeFile(t, filepath.Join(dir, "tampered"), []byte("unseal binary!"))

	tests := []struct {
		name          string
		keyring       string
		artifact      string
		signaturePath string
		wantErr       bool
	}{
		{"armored_signature", keyringPath, artifact, armoredSig, false},
		{"binary_signature", keyringPath, artifact, binarySig, false},
		{"tampered_artifact", keyringPath, tampered, armoredSig, true},
		{"missing_signature", keyringPath, artifact, filepath.Join(dir, "nope.asc"), true},
		{"no_keyring", "", artifact, armoredSig, true},
		{"missing_keyring", filepath.Join(dir, "nope.gpg"), artifact, armoredSig, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewVerifier(tt.keyring, "").VerifySignature("https://example.com/unseal", tt.artifact, tt.signaturePath)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("expected success, got error: %v", err)
				}
				return
			}

			var integrityErr *IntegrityError
			if !errors.As(err, &integrityErr) {
				t.Fatalf("expected *IntegrityError, got %v", err)
			}
			if integrityErr.Method != VerificationGPG {
				t.Errorf("Method = %v, want gpg", integrityErr.Method)
			}
		})
	}
}

func TestVerifySignatureWithOtherKey(t *testing.T) {
	dir := t.TempDir()
	_, keyringPath := newTestKeyring(t, dir)
	other, _ := newTestKeyring(t, t.TempDir())

	data := []byte("unseal binary")
	artifact := writeFile(t, filepath.Join(dir, "artifact"), data)

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, other, bytes.NewReader(data), nil); err != nil {
		t.Fatal(err)
	}
	sigPath := writeFile(t, filepath.Join(dir, "artifact.asc"), sig.Bytes())

	if err := NewVerifier(keyringPath, "").VerifySignature("u", artifact, sigPath); err == nil {
		t.Error("expected error for signature by a key outside the keyring")
	}
}

func TestVerifyBundleRejectsMalformedBundle(t *testing.T) {
	dir := t.TempDir()
	artifact := writeFile(t, filepath.Join(dir, "artifact"), []byte("unseal binary"))
	bundlePath := writeFile(t, filepath.Join(dir, "artifact.sigstore.json"), []byte(`{"mediaType": "nonsense"}`))

	spec := &descriptor.SigstoreBundle{
		URL:      "https://example.com/artifact.sigstore.json",
		Issuer:   "https://token.actions.githubusercontent.com",
		Identity: "^https://github.com/jaxxstorm/unseal/",
	}

	err := NewVerifier("", filepath.Join(dir, "missing-root.json")).VerifyBundle("https://example.com/unseal", artifact, bundlePath, spec)

	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected *IntegrityError, got %v", err)
	}
	if integrityErr.Method != VerificationSigstore {
		t.Errorf("Method = %v, want sigstore", integrityErr.Method)
	}
}

func TestVerifyBundleRequiresIdentity(t *testing.T) {
	err := NewVerifier("", "").VerifyBundle("u", "artifact", "bundle", nil)
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
}

func TestVerificationMethodString(t *testing.T) {
	tests := map[VerificationMethod]string{
		VerificationNone:       "none",
		VerificationSHA256:     "sha256",
		VerificationGPG:        "gpg",
		VerificationSigstore:   "sigstore",
		VerificationMethod(99): "unknown",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(m), got, want)
		}
	}
}
