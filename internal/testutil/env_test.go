package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/keg/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	t.Setenv("KEG_BIN_DIR", "/usr/local/bin")

	root := testutil.SetupTestEnv(t)

	for _, name := range []string{"KEG_CONFIG_DIR", "KEG_ROOT", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
		v := os.Getenv(name)
		if v == "" {
			t.Errorf("%s not set", name)
			continue
		}
		if !strings.HasPrefix(v, root) {
			t.Errorf("%s = %s, want under %s", name, v, root)
		}
	}

	if got := os.Getenv("KEG_BIN_DIR"); got != "" {
		t.Errorf("KEG_BIN_DIR = %q, want cleared", got)
	}

	for _, dir := range []string{os.Getenv("KEG_CONFIG_DIR"), os.Getenv("KEG_ROOT")} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory %s does not exist", dir)
		}
		if !filepath.IsAbs(dir) {
			t.Errorf("path %s is not absolute", dir)
		}
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	dir1 := testutil.SetupTestEnv(t)

	t.Run("subtest", func(t *testing.T) {
		dir2 := testutil.SetupTestEnv(t)
		if dir1 == dir2 {
			t.Error("expected different temp directories for different test contexts")
		}
	})
}

func TestWriteConfig(t *testing.T) {
	testutil.SetupTestEnv(t)

	path := testutil.WriteConfig(t, "retries: 5\n")
	if filepath.Dir(path) != os.Getenv("KEG_CONFIG_DIR") {
		t.Errorf("config written to %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "retries: 5\n" {
		t.Errorf("content = %q", data)
	}
}
