package descriptor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Testdata(t *testing.T) {
	for _, name := range []string{"unseal.lua", "unseal.yaml", "unseal.json"} {
		t.Run(name, func(t *testing.T) {
			desc, err := LoadFile(context.Background(), filepath.Join("testdata", name))
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}

			if desc.Name != "unseal" || desc.Version != "v0.3-beta" {
				t.Errorf("unexpected descriptor: %+v", desc)
			}

			enabled := desc.EnabledArtifacts()
			if len(enabled) != 1 {
				t.Fatalf("len(EnabledArtifacts()) = %d, want 1", len(enabled))
			}
			if enabled[0].SHA256 != unsealChecksum {
				t.Errorf("SHA256 = %q, want %q", enabled[0].SHA256, unsealChecksum)
			}
			if got := desc.TestArgs(); len(got) != 1 || got[0] != "version" {
				t.Errorf("TestArgs() = %v", got)
			}
		})
	}
}

func TestLoadFile_Equivalence(t *testing.T) {
	ctx := context.Background()
	fromLua, err := LoadFile(ctx, filepath.Join("testdata", "unseal.lua"))
	if err != nil {
		t.Fatalf("load lua: %v", err)
	}
	fromYAML, err := LoadFile(ctx, filepath.Join("testdata", "unseal.yaml"))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	if len(fromLua.Artifacts) != len(fromYAML.Artifacts) {
		t.Fatalf("artifact count differs: lua=%d yaml=%d", len(fromLua.Artifacts), len(fromYAML.Artifacts))
	}
	for i := range fromLua.Artifacts {
		l, y := fromLua.Artifacts[i], fromYAML.Artifacts[i]
		if l.Enabled != y.Enabled || l.When.String() != y.When.String() || l.SHA256 != y.SHA256 || l.URL != y.URL {
			t.Errorf("artifact %d differs:\n lua:  %+v\n yaml: %+v", i, l, y)
		}
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "unseal.txt")
	if err := os.WriteFile(txt, []byte("name = unseal"), 0o644); err != nil {
		t.Fatal(err)
	}

	big := filepath.Join(dir, "big.yaml")
	if err := os.WriteFile(big, make([]byte, MaxDescriptorSize+1), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		wantInvalid bool
	}{
		{"missing", filepath.Join(dir, "nope.lua"), false},
		{"directory", dir, true},
		{"unknown_extension", txt, true},
		{"too_large", big, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(context.Background(), tt.path)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if got := errors.Is(err, ErrInvalidDescriptor); got != tt.wantInvalid {
				t.Errorf("errors.Is(err, ErrInvalidDescriptor) = %v, want %v (err: %v)", got, tt.wantInvalid, err)
			}
		})
	}
}
