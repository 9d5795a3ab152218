// Package pipeline runs marquee's stages: years (candidate lists), details
// (fetch, normalize, optional audience estimate, cache), backfill (refetch
// contributors for records that lack them), and index.
//
// Every stage is recorded in the ledger with a run id that is also stamped on
// its log lines. Quota and budget exhaustion end a stage with a stopped
// status and a count of remaining work; they are not failures.
package pipeline
