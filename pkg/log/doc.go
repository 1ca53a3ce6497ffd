// Package log provides the logging abstraction used by canary components.
//
// The watchdog core never writes log lines directly; it calls a [Logger]
// supplied through its configuration. Two implementations ship with the
// package: a zerolog adapter for real output and a no-op logger that is
// the default when nothing is configured.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.FormatJSON, zerolog.InfoLevel)
//
// or, wrapping an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zl)
//
// Implement [Logger] to route canary output into another logging stack.
package log
