// Package normalize reconciles the record shapes returned by the catalog API,
// and the legacy documents written by earlier cache builders, into one
// canonical movie.Detail.
//
// Normalization never fails on a malformed optional field: the field degrades
// to absent or empty. The only negative outcome is InsufficientData, returned
// when neither an identifier nor a title can be recovered. Callers skip and
// count such records.
package normalize
