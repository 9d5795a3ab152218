// Package ledger persists daily upstream call usage and run history in SQLite.
//
// The quota table lets a later invocation on the same quota day stop before
// making any network attempt once the upstream has reported exhaustion, or
// once the locally configured daily allowance is spent. The runs table backs
// the status command.
package ledger
