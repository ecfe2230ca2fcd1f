// Package transaction guards installs with per-destination locks and records
// finished installs as receipts.
package transaction

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ReceiptSchemaVersion is bumped when the receipt layout changes.
const ReceiptSchemaVersion = 1

// Receipt records one completed placement of a package binary.
type Receipt struct {
	SchemaVersion int       `yaml:"schema_version"`
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	Version       string    `yaml:"version"`
	URL           string    `yaml:"url"`
	SHA256        string    `yaml:"sha256"`
	Path          string    `yaml:"path"`
	InstalledAt   time.Time `yaml:"installed_at"`
	Platform      string    `yaml:"platform"`
	Verification  []string  `yaml:"verification"`
	Checked       bool      `yaml:"checked"`
	CheckError    string    `yaml:"check_error,omitempty"`
}

// NewReceipt creates a receipt with a fresh install ID.
func NewReceipt(name, version string) *Receipt {
	return &Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		ID:            uuid.New().String(),
		Name:          name,
		Version:       version,
		InstalledAt:   time.Now().UTC(),
	}
}

// ReceiptPath returns where the receipt for name is stored.
func ReceiptPath(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

// Save writes the receipt to disk atomically.
// Uses write-then-rename pattern for atomicity.
func (r *Receipt) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create receipts directory: %w", err)
	}

	finalPath := ReceiptPath(dir, r.Name)

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+r.Name+".yaml.tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary receipt file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temporary receipt file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temporary receipt file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temporary receipt file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary receipt file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename receipt file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// LoadReceipt reads the receipt for name from dir.
func LoadReceipt(dir, name string) (*Receipt, error) {
	data, err := os.ReadFile(ReceiptPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var r Receipt
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}

	return &r, nil
}
