package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ZebulonRouseFrantzich/keg/internal/config"
	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/installer"
	"github.com/ZebulonRouseFrantzich/keg/internal/resolve"
)

// Process exit codes, one per failure category.
const (
	exitOK          = 0
	exitUnexpected  = 1
	exitUsage       = 2
	exitUnsupported = 3
	exitFetch       = 4
	exitIntegrity   = 5
	exitPlacement   = 6
	exitCheck       = 7
)

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var (
		usageErr  *usageError
		configErr *config.ValidationError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr), errors.As(err, &configErr):
		return exitUsage
	case errors.Is(err, descriptor.ErrInvalidDescriptor):
		return exitUsage
	case errors.Is(err, resolve.ErrUnsupportedPlatform):
		return exitUnsupported
	case errors.Is(err, installer.ErrFetch):
		return exitFetch
	case errors.Is(err, installer.ErrIntegrity):
		return exitIntegrity
	case errors.Is(err, installer.ErrPlacement):
		return exitPlacement
	case errors.Is(err, installer.ErrPostInstallCheck):
		return exitCheck
	case errors.Is(err, fs.ErrNotExist):
		// a descriptor path that does not exist
		return exitUsage
	default:
		return exitUnexpected
	}
}

func printError(w io.Writer, err error, verbose bool) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", descriptor.FormatError(err, verbose))
}
