// Package version exposes build metadata injected with -ldflags and a cobra
// `version` subcommand that prints it.
package version
