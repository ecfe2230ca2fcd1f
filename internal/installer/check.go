package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultCheckTimeout bounds the post-install smoke test.
	DefaultCheckTimeout = 30 * time.Second
	// maxCheckOutput caps the captured smoke test output.
	maxCheckOutput = 4096
)

// Checker runs the post-install smoke test.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a checker; a non-positive timeout uses DefaultCheckTimeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{timeout: timeout}
}

// Run executes path with args and returns its combined output. A non-zero
// exit, a launch failure or a timeout yields *PostInstallCheckError.
func (c *Checker) Run(ctx context.Context, path string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	output := truncateOutput(string(out))
	if err == nil {
		return output, nil
	}

	checkErr := &PostInstallCheckError{
		Path:     path,
		Args:     append([]string(nil), args...),
		ExitCode: -1,
		Output:   output,
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		checkErr.Err = fmt.Errorf("timed out after %s: %w", c.timeout, ctx.Err())
	case errors.As(err, &exitErr):
		checkErr.ExitCode = exitErr.ExitCode()
	}

	return output, checkErr
}

func truncateOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxCheckOutput {
		return s[:maxCheckOutput] + "…"
	}
	return s
}
