// Package detailcache stores canonical movie records on disk, one JSON file
// per title under a release-year directory:
//
//	<movies_dir>/<year>/<id>.json
//	<movies_dir>/unknown/<id>.json
//
// Writes go through a temp file and rename so readers never observe a
// partial record. Cumulative audience figures merge monotonically: an upsert
// never lowers a previously stored value.
package detailcache
