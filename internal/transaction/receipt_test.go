package transaction

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestReceiptSaveLoad(t *testing.T) {
	dir := t.TempDir()

	r := NewReceipt("unseal", "v0.3-beta")
	r.URL = "https://example.com/unseal"
	r.SHA256 = "f25061683b741ad394efd4277bb076a7a1c095b98a53c76470da70aa37f08d8e"
	r.Path = "/usr/local/bin/unseal"
	r.Platform = "darwin/amd64"
	r.Verification = []string{"sha256", "gpg"}
	r.Checked = true

	if err := r.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	assertOnlyReceipt(t, dir, "unseal.yaml")

	loaded, err := LoadReceipt(dir, "unseal")
	if err != nil {
		t.Fatalf("LoadReceipt failed: %v", err)
	}

	if loaded.ID != r.ID || loaded.SHA256 != r.SHA256 || loaded.Path != r.Path {
		t.Errorf("loaded receipt differs:\ngot:  %+v\nwant: %+v", loaded, r)
	}
	if loaded.SchemaVersion != ReceiptSchemaVersion {
		t.Errorf("SchemaVersion = %d", loaded.SchemaVersion)
	}
	if len(loaded.Verification) != 2 || !loaded.Checked {
		t.Errorf("unexpected verification state: %+v", loaded)
	}
	if !loaded.InstalledAt.Equal(r.InstalledAt) {
		t.Errorf("InstalledAt = %v, want %v", loaded.InstalledAt, r.InstalledAt)
	}
}

func TestNewReceiptUniqueIDs(t *testing.T) {
	a := NewReceipt("unseal", "1")
	b := NewReceipt("unseal", "1")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestLoadReceiptMissing(t *testing.T) {
	if _, err := LoadReceipt(t.TempDir(), "nope"); err == nil {
		t.Error("expected error for missing receipt")
	}
}

func TestReceiptSaveConcurrent(t *testing.T) {
	dir := t.TempDir()

	const writers = 8
	ids := make(map[string]bool, writers)
	receipts := make([]*Receipt, writers)
	for n := range receipts {
		receipts[n] = NewReceipt("unseal", "v0.3-beta")
		ids[receipts[n].ID] = true
	}

	errs := make([]error, writers)
	var wg sync.WaitGroup
	for n, r := range receipts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[n] = r.Save(dir)
		}()
	}
	wg.Wait()

	for n, err := range errs {
		if err != nil {
			t.Errorf("Save %d failed: %v", n, err)
		}
	}

	loaded, err := LoadReceipt(dir, "unseal")
	if err != nil {
		t.Fatalf("LoadReceipt failed: %v", err)
	}
	if !ids[loaded.ID] {
		t.Errorf("loaded receipt ID %q was not written by any writer", loaded.ID)
	}
	assertOnlyReceipt(t, dir, "unseal.yaml")
}

// assertOnlyReceipt fails if dir holds anything besides the named receipt.
func assertOnlyReceipt(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != name {
			t.Errorf("unexpected file left in receipts directory: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("receipt %s missing: %v", name, err)
	}
}
