// Package main hosts the marquee CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the run logger, takes
// the single-run lock for stages that write the data tree, and hands off to
// internal/pipeline. Quota and budget stops exit zero and print the remaining
// work; only failed stages produce a non-zero exit.
package main
