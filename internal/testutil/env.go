// Package testutil provides utilities for testing keg in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// settingEnvVars are the KEG_* overrides cleared by SetupTestEnv so a
// developer's own environment cannot leak into a test.
var settingEnvVars = []string{
	"KEG_BIN_DIR",
	"KEG_CACHE_DIR",
	"KEG_RECEIPTS_DIR",
	"KEG_TIMEOUT",
	"KEG_RETRIES",
	"KEG_RETRY_BACKOFF",
	"KEG_CHECK_TIMEOUT",
	"KEG_KEYRING",
	"KEG_TRUSTED_ROOT",
	"KEG_LOG_LEVEL",
	"KEG_PROGRESS",
}

// SetupTestEnv creates isolated keg directories for a test and points the
// environment at them. This ensures tests never touch:
// - a real bin directory on PATH
// - the user's keg configuration
// - the user's download cache
//
// It returns the temporary root. Cleanup is handled by t.TempDir() and
// t.Setenv(), so tests using it cannot run in parallel.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("KEG_CONFIG_DIR", filepath.Join(tmpDir, "config"))
	t.Setenv("KEG_ROOT", filepath.Join(tmpDir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "xdg-data"))
	for _, name := range settingEnvVars {
		t.Setenv(name, "")
	}

	dirs := []string{
		filepath.Join(tmpDir, "config"),
		filepath.Join(tmpDir, "data"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return tmpDir
}

// WriteConfig writes config.yaml into the directory named by KEG_CONFIG_DIR.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()

	dir := os.Getenv("KEG_CONFIG_DIR")
	if dir == "" {
		t.Fatal("WriteConfig called without SetupTestEnv")
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
