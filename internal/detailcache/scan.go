package detailcache

import (
	"iter"
	"path/filepath"

	"marquee/internal/movie"
)

// Entry is one scanned record. Detail is zero when the scan reports an error.
type Entry struct {
	Path   string
	Year   string
	ID     string
	Detail movie.Detail
}

// ScanAll lazily yields every stored record. Each call re-lists the
// directories, so the sequence can be ranged over more than once. Unreadable
// or malformed files are yielded with a non-nil error and the scan continues;
// order is not part of the contract.
func (c *Cache) ScanAll() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		years, err := c.partitions()
		if err != nil {
			yield(Entry{Path: c.root}, err)
			return
		}
		for _, year := range years {
			ids, err := c.recordIDs(year)
			if err != nil {
				if !yield(Entry{Path: filepath.Join(c.root, year), Year: year}, err) {
					return
				}
				continue
			}
			for _, id := range ids {
				entry := Entry{Path: c.Path(year, id), Year: year, ID: id}
				d, err := readRecord(entry.Path, year, id)
				if err == nil {
					entry.Detail = d
				}
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}
