// Package candidates manages the per-year candidate lists (year-YYYY.json)
// that drive the details stage, and the stage that fetches them from the
// catalog's title list.
package candidates
