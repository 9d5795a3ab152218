// Package services defines shared utilities consumed by the pipeline stages
// and the upstream integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and title identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the malformed/transient/quota/budget/permanent taxonomy.
//   - RunStatus, which turns the error that ended a stage into either a clean
//     stop (quota, budget) or a failure.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
