package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
	"github.com/ZebulonRouseFrantzich/keg/internal/testutil"
	"github.com/ZebulonRouseFrantzich/keg/internal/version"
)

const (
	versionScript = "#!/bin/sh\n[ \"$1\" = \"version\" ] && echo \"unseal v0.3-beta\" && exit 0\nexit 1\n"
	brokenScript  = "#!/bin/sh\nexit 1\n"
)

type cliEnv struct {
	root     string
	binDir   string
	server   *httptest.Server
	requests *atomic.Int32
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	detector platform.Detector
}

func newCLIEnv(t *testing.T, payload []byte, status int) *cliEnv {
	t.Helper()
	if os.PathSeparator == '\\' {
		t.Skip("shell-script fixtures need a POSIX shell")
	}

	root := testutil.SetupTestEnv(t)
	t.Setenv("KEG_PROGRESS", "false")
	t.Setenv("KEG_RETRY_BACKOFF", "1ms")
	t.Setenv("KEG_LOG_LEVEL", "error")

	env := &cliEnv{
		root:     root,
		binDir:   filepath.Join(root, "data", "bin"),
		requests: &atomic.Int32{},
		detector: platform.NewStaticDetector(platform.Info{OS: "darwin", Arch: "amd64"}),
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		env.requests.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(payload)
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (e *cliEnv) run(args ...string) int {
	e.stdout.Reset()
	e.stderr.Reset()
	a := newApp(&e.stdout, &e.stderr)
	a.detector = e.detector
	return run(context.Background(), a, args)
}

// writeDescriptor writes a YAML descriptor for unseal served by the test server.
func (e *cliEnv) writeDescriptor(t *testing.T, sum string) string {
	t.Helper()
	content := fmt.Sprintf(`name: unseal
version: v0.3-beta
artifacts:
  - when: is_64_bit
    url: %s/unseal
    sha256: %q
  - enabled: false
    when: is_32_bit
    url: %s/unseal
    sha256: ""
`, e.server.URL, sum, e.server.URL)
	path := filepath.Join(e.root, "unseal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestInstall_Success(t *testing.T) {
	env := newCLIEnv(t, []byte(versionScript), http.StatusOK)
	path := env.writeDescriptor(t, sha256Hex([]byte(versionScript)))

	if code := env.run("install", path); code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, env.stderr.String())
	}

	bin := filepath.Join(env.binDir, "unseal")
	info, err := os.Stat(bin)
	if err != nil {
		t.Fatalf("binary not installed: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}

	out := env.stdout.String()
	for _, want := range []string{"Installed unseal v0.3-beta -> " + bin, "verified: sha256", "check:    ok", "receipt:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if code := env.run("receipt", "unseal"); code != exitOK {
		t.Fatalf("receipt exit = %d, stderr:\n%s", code, env.stderr.String())
	}
	if !strings.Contains(env.stdout.String(), "name: unseal") {
		t.Errorf("receipt output:\n%s", env.stdout.String())
	}
}

func TestInstall_ExitCodes(t *testing.T) {
	script := []byte(versionScript)

	tests := []struct {
		name      string
		payload   []byte
		status    int
		sum       string
		info      *platform.Info
		extraArgs []string
		want      int
		requests  int32
		installed bool
	}{
		{
			name:     "checksum mismatch",
			payload:  script,
			status:   http.StatusOK,
			sum:      strings.Repeat("a", 64),
			want:     exitIntegrity,
			requests: 1,
		},
		{
			name:     "32-bit platform unsupported",
			payload:  script,
			status:   http.StatusOK,
			sum:      sha256Hex(script),
			info:     &platform.Info{OS: "linux", Arch: "386"},
			want:     exitUnsupported,
			requests: 0,
		},
		{
			name:     "not found",
			payload:  nil,
			status:   http.StatusNotFound,
			sum:      sha256Hex(script),
			want:     exitFetch,
			requests: 1,
		},
		{
			name:      "post-install check fails",
			payload:   []byte(brokenScript),
			status:    http.StatusOK,
			sum:       sha256Hex([]byte(brokenScript)),
			want:      exitCheck,
			requests:  1,
			installed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t, tt.payload, tt.status)
			if tt.info != nil {
				env.detector = platform.NewStaticDetector(*tt.info)
			}
			path := env.writeDescriptor(t, tt.sum)

			args := append([]string{"install"}, tt.extraArgs...)
			args = append(args, path)
			if code := env.run(args...); code != tt.want {
				t.Fatalf("exit = %d, want %d; stderr:\n%s", code, tt.want, env.stderr.String())
			}
			if got := env.requests.Load(); got != tt.requests {
				t.Errorf("requests = %d, want %d", got, tt.requests)
			}

			_, err := os.Stat(filepath.Join(env.binDir, "unseal"))
			if installed := err == nil; installed != tt.installed {
				t.Errorf("installed = %v, want %v", installed, tt.installed)
			}
			if !strings.Contains(env.stderr.String(), "Error:") {
				t.Errorf("stderr has no error line:\n%s", env.stderr.String())
			}
		})
	}
}

func TestInstall_PlacementFailure(t *testing.T) {
	env := newCLIEnv(t, []byte(versionScript), http.StatusOK)
	path := env.writeDescriptor(t, sha256Hex([]byte(versionScript)))

	notADir := filepath.Join(env.root, "file")
	if err := os.WriteFile(notADir, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if code := env.run("install", "--bin-dir", notADir, path); code != exitPlacement {
		t.Fatalf("exit = %d, want %d; stderr:\n%s", code, exitPlacement, env.stderr.String())
	}
}

func TestInstall_InvalidDescriptor(t *testing.T) {
	env := newCLIEnv(t, nil, http.StatusOK)

	// an enabled variant without a checksum is rejected at load time
	path := env.writeDescriptor(t, "")
	if code := env.run("install", path); code != exitUsage {
		t.Fatalf("exit = %d, want %d; stderr:\n%s", code, exitUsage, env.stderr.String())
	}
	if env.requests.Load() != 0 {
		t.Error("invalid descriptor should not trigger a download")
	}

	if code := env.run("install", filepath.Join(env.root, "missing.lua")); code != exitUsage {
		t.Errorf("missing file exit = %d, want %d", code, exitUsage)
	}
}

func TestInstall_WarnsAboutCredentials(t *testing.T) {
	env := newCLIEnv(t, []byte(versionScript), http.StatusOK)
	path := filepath.Join(env.root, "unseal.yaml")
	content := fmt.Sprintf("name: unseal\nversion: v1\nartifacts:\n  - url: %s/unseal?token=s3cr3t\n    sha256: %s\n",
		env.server.URL, sha256Hex([]byte(versionScript)))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if code := env.run("install", path); code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, env.stderr.String())
	}
	if !strings.Contains(env.stderr.String(), "token=[REDACTED]") {
		t.Errorf("expected credential warning, stderr:\n%s", env.stderr.String())
	}
	if strings.Contains(env.stderr.String(), "s3cr3t") {
		t.Error("warning leaks the token")
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"install without descriptor", []string{"install"}},
		{"install with two descriptors", []string{"install", "a.lua", "b.lua"}},
		{"unknown flag", []string{"install", "--no-such-flag", "a.lua"}},
		{"unknown command", []string{"uninstall", "unseal"}},
		{"bad bits", []string{"resolve", "--bits", "16", "a.lua"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t, nil, http.StatusOK)
			if code := env.run(tt.args...); code != exitUsage {
				t.Errorf("exit = %d, want %d; stderr:\n%s", code, exitUsage, env.stderr.String())
			}
		})
	}
}

func TestReceipt_RejectsPathNames(t *testing.T) {
	env := newCLIEnv(t, nil, http.StatusOK)
	// A YAML file two levels above the receipts directory.
	env.writeDescriptor(t, strings.Repeat("a", 64))

	for _, name := range []string{"../../unseal", "../receipts/unseal", "/etc/passwd", ".hidden"} {
		t.Run(name, func(t *testing.T) {
			if code := env.run("receipt", name); code != exitUsage {
				t.Errorf("exit = %d, want %d; stderr:\n%s", code, exitUsage, env.stderr.String())
			}
			if env.stdout.Len() != 0 {
				t.Errorf("unexpected output:\n%s", env.stdout.String())
			}
			if !strings.Contains(env.stderr.String(), "not a valid package name") {
				t.Errorf("stderr = %q", env.stderr.String())
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	env := newCLIEnv(t, nil, http.StatusOK)
	t.Setenv("KEG_RETRIES", "0")

	if code := env.run("resolve", "unseal.lua"); code != exitUsage {
		t.Errorf("exit = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(env.stderr.String(), "retries") {
		t.Errorf("stderr:\n%s", env.stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t, nil, http.StatusOK)
	// version must work even with a broken config
	t.Setenv("KEG_RETRIES", "0")

	if code := env.run("version"); code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, env.stderr.String())
	}
	if strings.TrimSpace(env.stdout.String()) != version.Full() {
		t.Errorf("output = %q", env.stdout.String())
	}
}

func TestResolve(t *testing.T) {
	env := newCLIEnv(t, nil, http.StatusOK)
	sum := strings.Repeat("b", 64)
	path := env.writeDescriptor(t, sum)

	if code := env.run("resolve", path); code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, env.stderr.String())
	}
	out := env.stdout.String()
	for _, want := range []string{"unseal v0.3-beta on darwin/amd64 (64-bit)", "sha256:  " + sum, "when:    bits=64"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if code := env.run("resolve", "--os", "linux", "--arch", "i686", path); code != exitUnsupported {
		t.Errorf("32-bit exit = %d, want %d", code, exitUnsupported)
	}
	if !strings.Contains(env.stderr.String(), "linux/386") {
		t.Errorf("error should name the platform:\n%s", env.stderr.String())
	}

	if code := env.run("resolve", "--all", "--arch", "386", path); code != exitUnsupported {
		t.Errorf("--all 32-bit exit = %d, want %d", code, exitUnsupported)
	}
	if !strings.Contains(env.stdout.String(), "[1] disabled") {
		t.Errorf("--all should list the disabled variant:\n%s", env.stdout.String())
	}

	if env.requests.Load() != 0 {
		t.Error("resolve must not download anything")
	}
}

func TestOverridePlatform(t *testing.T) {
	base := platform.Info{OS: "darwin", Arch: "amd64", ArchRaw: "x86_64", Bits: 64}

	tests := []struct {
		name string
		opts resolveOptions
		want platform.Info
	}{
		{"none", resolveOptions{}, base},
		{"os only", resolveOptions{os: "linux"}, platform.Info{OS: "linux", Arch: "amd64", ArchRaw: "x86_64", Bits: 64}},
		{"arch resets bits", resolveOptions{arch: "i386"}, platform.Info{OS: "darwin", Arch: "386", ArchRaw: "i386", Bits: 32}},
		{"explicit bits", resolveOptions{arch: "aarch64", bits: 32}, platform.Info{OS: "darwin", Arch: "arm64", ArchRaw: "aarch64", Bits: 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overridePlatform(base, tt.opts); got != tt.want {
				t.Errorf("overridePlatform() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
