// Package logging assembles structured slog loggers and formatting helpers used
// across autoingest services.
//
// It owns the configurable console/JSON handlers, routes file output through a
// size-rotated writer, and exposes context-aware helpers so the scheduler and
// pipeline can automatically tag log lines with workflow IDs, queue item IDs,
// and correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
