// Package preflight provides readiness checks for the credential and the
// directories marquee writes to.
//
// These checks run in two contexts:
//   - Network stages call RunAll before the first upstream request and abort
//     when a check fails, since an unwritable cache directory would waste
//     quota on fetches that cannot be saved.
//   - The CLI "marquee status" command displays every result.
package preflight
