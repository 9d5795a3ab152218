// Package fetcher bounds outbound catalog calls.
//
// A Fetcher owns the per-run call budget, the retry state machine for
// transient failures, the pacing limiter between attempts, an outage breaker,
// and the daily quota latch. Once the upstream reports quota exhaustion every
// later call fails fast with services.ErrQuotaExhausted without touching the
// network; the caller decides how to end its run.
package fetcher
