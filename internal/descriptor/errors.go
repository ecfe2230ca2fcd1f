package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDescriptor is matched by every load and validation failure.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// InvalidDescriptorError reports a descriptor that breaks a validation rule.
type InvalidDescriptorError struct {
	Source  string // file the descriptor came from, if any
	Field   string // offending field, e.g. "artifacts[1].sha256"
	Message string
}

func (e *InvalidDescriptorError) Error() string {
	var b strings.Builder
	b.WriteString("invalid descriptor")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	return b.String()
}

// Unwrap lets errors.Is match ErrInvalidDescriptor.
func (e *InvalidDescriptorError) Unwrap() error {
	return ErrInvalidDescriptor
}

// ParseError reports a descriptor that could not be evaluated or decoded.
type ParseError struct {
	Source  string
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua or decoder error)
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Unwrap lets errors.Is match ErrInvalidDescriptor.
func (e *ParseError) Unwrap() error {
	return ErrInvalidDescriptor
}

// FormatError formats a descriptor error for user display.
// In verbose mode the raw detail is shown; otherwise Lua stack traces are cut.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
