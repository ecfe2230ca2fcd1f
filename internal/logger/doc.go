// Package logger wraps zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - DebugKV, InfoKV and WarnKV, which log through the context's logger.
//
// Installer steps take a context and extract the logger from it, so every
// line emitted during one install carries that install's fields.
package logger
