package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFetch            = errors.New("fetch failed")
	ErrIntegrity        = errors.New("integrity check failed")
	ErrPlacement        = errors.New("placement failed")
	ErrPostInstallCheck = errors.New("post-install check failed")
)

// FetchError reports an artifact that could not be downloaded.
type FetchError struct {
	URL string
	// StatusCode is the last HTTP status seen, 0 for transport errors.
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s", e.URL)
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// IntegrityError reports fetched bytes that failed verification.
type IntegrityError struct {
	URL string
	// Method is the check that failed.
	Method   VerificationMethod
	Expected string
	Actual   string
	Err      error
}

func (e *IntegrityError) Error() string {
	if e.Method == VerificationSHA256 && e.Expected != "" {
		return fmt.Sprintf("checksum mismatch for %s:\nactual:   %s\nexpected: %s", e.URL, e.Actual, e.Expected)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s verification failed for %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s verification failed for %s", e.Method, e.URL)
}

func (e *IntegrityError) Unwrap() []error {
	return []error{ErrIntegrity, e.Err}
}

// PlacementError reports a failure to put the executable at its final path.
type PlacementError struct {
	Path string
	Op   string
	Err  error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("place %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PlacementError) Unwrap() []error {
	return []error{ErrPlacement, e.Err}
}

// PostInstallCheckError reports a placed binary whose smoke test failed.
type PostInstallCheckError struct {
	Path string
	Args []string
	// ExitCode is -1 when the process could not be started or was killed.
	ExitCode int
	Output   string
	Err      error
}

func (e *PostInstallCheckError) Error() string {
	cmd := strings.TrimSpace(e.Path + " " + strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		return fmt.Sprintf("post-install check %q exited with code %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("post-install check %q failed: %v", cmd, e.Err)
}

func (e *PostInstallCheckError) Unwrap() []error {
	return []error{ErrPostInstallCheck, e.Err}
}
