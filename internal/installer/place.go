package installer

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
	"github.com/ZebulonRouseFrantzich/keg/internal/transaction"
)

// ExecutableMode is the permission set on every placed binary.
const ExecutableMode os.FileMode = 0o755

// Placer moves verified executables into the bin directory.
type Placer struct {
	binDir string
}

// NewPlacer creates a placer for binDir.
func NewPlacer(binDir string) *Placer {
	return &Placer{binDir: binDir}
}

// Path returns the final location of the named binary.
func (p *Placer) Path(name string) string {
	return filepath.Join(p.binDir, name)
}

// Place installs srcPath as <binDir>/<name> while holding the destination
// lock. A fresh install goes through a temp file and rename; an existing
// binary is swapped with go-update, which rolls back on failure. The final
// path never holds a partial file. It reports whether a binary was replaced.
func (p *Placer) Place(ctx context.Context, name, srcPath string) (bool, error) {
	dest := p.Path(name)

	if err := os.MkdirAll(p.binDir, 0755); err != nil {
		return false, &PlacementError{Path: dest, Op: "create bin dir", Err: err}
	}

	lock, err := transaction.AcquireLock(ctx, p.binDir, name)
	if err != nil {
		return false, &PlacementError{Path: dest, Op: "lock", Err: err}
	}
	defer lock.Release()

	info, err := os.Lstat(dest)
	switch {
	case os.IsNotExist(err):
		return false, p.placeNew(dest, srcPath)
	case err != nil:
		return false, &PlacementError{Path: dest, Op: "stat", Err: err}
	case info.IsDir():
		return false, &PlacementError{Path: dest, Op: "stat", Err: fmt.Errorf("destination is a directory")}
	case !info.Mode().IsRegular():
		// Symlinks and the like are replaced, not followed.
		return true, p.placeNew(dest, srcPath)
	}

	warnIfRunning(ctx, name)
	return true, p.replace(dest, srcPath)
}

// placeNew writes a temp file next to dest, then renames it over dest.
func (p *Placer) placeNew(dest, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return &PlacementError{Path: dest, Op: "open source", Err: err}
	}
	defer src.Close()

	tmpFile, err := os.CreateTemp(p.binDir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return &PlacementError{Path: dest, Op: "create temp", Err: err}
	}
	tmpPath := tmpFile.Name()

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, src); err != nil {
		return &PlacementError{Path: dest, Op: "write", Err: err}
	}
	if err := tmpFile.Chmod(ExecutableMode); err != nil {
		return &PlacementError{Path: dest, Op: "chmod", Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		return &PlacementError{Path: dest, Op: "sync", Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &PlacementError{Path: dest, Op: "close", Err: err}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return &PlacementError{Path: dest, Op: "rename", Err: err}
	}

	cleanupNeeded = false
	syncDir(p.binDir)
	return nil
}

// replace swaps an existing binary through go-update.
func (p *Placer) replace(dest, srcPath string) error {
	digest, err := calculateSHA256(srcPath)
	if err != nil {
		return &PlacementError{Path: dest, Op: "hash source", Err: err}
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return &PlacementError{Path: dest, Op: "open source", Err: err}
	}
	defer src.Close()

	// go-update stages .<name>.new and keeps .<name>.old during the swap.
	defer removeUpdateLeftovers(dest)

	options := goupdate.Options{
		TargetPath: dest,
		TargetMode: ExecutableMode,
		Checksum:   digest,
		Hash:       crypto.SHA256,
	}
	if err := goupdate.Apply(src, options); err != nil {
		return &PlacementError{Path: dest, Op: "replace", Err: err}
	}

	if err := os.Chmod(dest, ExecutableMode); err != nil {
		return &PlacementError{Path: dest, Op: "chmod", Err: err}
	}

	syncDir(p.binDir)
	return nil
}

func removeUpdateLeftovers(dest string) {
	dir, base := filepath.Split(dest)
	for _, suffix := range []string{".new", ".old"} {
		leftover := filepath.Join(dir, "."+base+suffix)
		if _, err := os.Lstat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}
}

// warnIfRunning logs when a process with the binary's name is alive.
func warnIfRunning(ctx context.Context, name string) {
	processList, err := ps.Processes()
	if err != nil {
		logger.DebugKV(ctx, "Could not list processes", "error", err)
		return
	}

	thisProcessID := os.Getpid()
	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != name {
			continue
		}
		logger.WarnKV(ctx, "Replacing a binary that is currently running", "name", name, "pid", process.Pid())
	}
}

func syncDir(dir string) {
	df, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = df.Sync()
	df.Close()
}
