// Package logging assembles structured slog loggers and formatting helpers used
// across marquee stages.
//
// It owns the console and JSON handlers, tees every run into a dated log file
// under the configured log directory, and exposes context-aware helpers so
// stage code automatically tags log lines with the run ID, stage name, and the
// title being processed. A no-op logger is provided for tests and for wiring
// code that cannot fail.
package logging
