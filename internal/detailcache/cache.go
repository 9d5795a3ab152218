package detailcache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"marquee/internal/fileutil"
	"marquee/internal/logging"
	"marquee/internal/movie"
	"marquee/internal/normalize"
	"marquee/internal/services"
)

const (
	recordExt = ".json"

	// PlaceholderSuffix marks files that only keep empty directories in version control.
	PlaceholderSuffix = ".gitkeep"
)

// Outcome describes what an upsert did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Cache is the year-partitioned record store.
type Cache struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	index map[string]string // id -> year directory; nil until first use
}

// New returns a cache rooted at dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		root:   dir,
		logger: logging.NewComponentLogger(logger, "detailcache"),
	}
}

// Root returns the cache directory.
func (c *Cache) Root() string {
	return c.root
}

// Path returns the file location for id in year.
func (c *Cache) Path(year, id string) string {
	return filepath.Join(c.root, year, id+recordExt)
}

// Upsert writes d, merging the cumulative audience with any stored value.
// A record that moves to a different year partition is removed from the old one.
func (c *Cache) Upsert(d movie.Detail) (Outcome, error) {
	record := d.Clone()
	record.Canonicalize()
	if !record.Valid() {
		return "", services.Wrap(services.ErrMalformedInput, "detailcache", "upsert",
			"record requires id and title", nil)
	}
	if err := checkID(record.ID); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureIndexLocked(); err != nil {
		return "", err
	}

	previousYear, existed := c.index[record.ID]
	if existed {
		previous, err := readRecord(c.Path(previousYear, record.ID), previousYear, record.ID)
		if err != nil {
			c.logger.Warn("stored record unreadable; overwriting",
				logging.String(logging.FieldEventType, "cache_record_unreadable"),
				logging.String(logging.FieldMovieID, record.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the file if this repeats"),
				logging.String(logging.FieldImpact, "stored audience figure cannot be merged"),
			)
		} else {
			record.Audience = movie.MaxAudience(previous.Audience, record.Audience)
		}
	}

	data, err := Encode(record)
	if err != nil {
		return "", err
	}
	year := record.Year()
	target := c.Path(year, record.ID)

	if existed && previousYear == year {
		current, readErr := os.ReadFile(target)
		if readErr == nil && bytes.Equal(current, data) {
			return OutcomeUnchanged, nil
		}
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrPermanent, "detailcache", "upsert", "write record", err)
	}
	if existed && previousYear != year {
		stale := c.Path(previousYear, record.ID)
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove record from previous partition",
				logging.String(logging.FieldEventType, "cache_stale_partition"),
				logging.String(logging.FieldMovieID, record.ID),
				logging.String("path", stale),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the stale file manually"),
				logging.String(logging.FieldImpact, "the title may be indexed twice"),
			)
		}
	}
	c.index[record.ID] = year

	if existed {
		return OutcomeUpdated, nil
	}
	return OutcomeCreated, nil
}

// Exists reports whether a record for id is stored. It consults the directory
// listing only and never reads record contents.
func (c *Cache) Exists(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureIndexLocked(); err != nil {
		return false, err
	}
	_, ok := c.index[strings.TrimSpace(id)]
	return ok, nil
}

// Load returns the stored record for id.
func (c *Cache) Load(id string) (movie.Detail, bool, error) {
	id = strings.TrimSpace(id)
	c.mu.Lock()
	if err := c.ensureIndexLocked(); err != nil {
		c.mu.Unlock()
		return movie.Detail{}, false, err
	}
	year, ok := c.index[id]
	c.mu.Unlock()
	if !ok {
		return movie.Detail{}, false, nil
	}
	d, err := readRecord(c.Path(year, id), year, id)
	if err != nil {
		return movie.Detail{}, false, err
	}
	return d, true, nil
}

// Reset drops the in-memory id index so the next call re-lists the directories.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.index = nil
	c.mu.Unlock()
}

// YearCount is the number of stored records in one partition.
type YearCount struct {
	Year  string
	Count int
}

// Counts returns per-partition record counts sorted by year, "unknown" last.
func (c *Cache) Counts() ([]YearCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureIndexLocked(); err != nil {
		return nil, err
	}
	byYear := make(map[string]int)
	for _, year := range c.index {
		byYear[year]++
	}
	out := make([]YearCount, 0, len(byYear))
	for year, n := range byYear {
		out = append(out, YearCount{Year: year, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return yearLess(out[i].Year, out[j].Year)
	})
	return out, nil
}

func yearLess(a, b string) bool {
	if (a == movie.UnknownYear) != (b == movie.UnknownYear) {
		return b == movie.UnknownYear
	}
	return a < b
}

func (c *Cache) ensureIndexLocked() error {
	if c.index != nil {
		return nil
	}
	index := make(map[string]string)
	years, err := c.partitions()
	if err != nil {
		return err
	}
	for _, year := range years {
		ids, err := c.recordIDs(year)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if other, dup := index[id]; dup {
				c.logger.Debug("record present in two partitions",
					logging.String(logging.FieldMovieID, id),
					logging.String("kept", other),
					logging.String("ignored", year),
				)
				continue
			}
			index[id] = year
		}
	}
	c.index = index
	return nil
}

func (c *Cache) partitions() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPermanent, "detailcache", "list partitions", c.root, err)
	}
	years := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			years = append(years, entry.Name())
		}
	}
	sort.Strings(years)
	return years, nil
}

func (c *Cache) recordIDs(year string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.root, year))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPermanent, "detailcache", "list records", year, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if id, ok := recordID(entry); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func recordID(entry fs.DirEntry) (string, bool) {
	name := entry.Name()
	switch {
	case entry.IsDir(),
		strings.HasSuffix(name, PlaceholderSuffix),
		fileutil.IsTempFile(name),
		strings.HasPrefix(name, "."),
		!strings.HasSuffix(name, recordExt):
		return "", false
	}
	id := strings.TrimSuffix(name, recordExt)
	return id, id != ""
}

func checkID(id string) error {
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return services.Wrap(services.ErrMalformedInput, "detailcache", "upsert",
			fmt.Sprintf("id %q is not usable as a file name", id), nil)
	}
	return nil
}

// Encode renders d as the canonical cache document.
func Encode(d movie.Detail) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, "detailcache", "encode", d.ID, err)
	}
	return append(data, '\n'), nil
}

// readRecord decodes a stored file. Files written by earlier tools in upstream
// shape are normalized with the partition name as the year hint.
func readRecord(path, year, id string) (movie.Detail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return movie.Detail{}, services.Wrap(services.ErrPermanent, "detailcache", "read", path, err)
	}
	hints := normalize.Hints{ID: id}
	if year != movie.UnknownYear {
		hints.Year = year
	}
	result, err := normalize.NormalizeJSON(data, hints)
	if err != nil {
		return movie.Detail{}, err
	}
	canonical, ok := result.(normalize.Canonical)
	if !ok {
		return movie.Detail{}, services.Wrap(services.ErrMalformedInput, "detailcache", "read",
			fmt.Sprintf("%s: %s", path, normalize.Describe(result)), nil)
	}
	if !canonical.Detail.Valid() {
		return movie.Detail{}, services.Wrap(services.ErrMalformedInput, "detailcache", "read",
			path+": record lacks id or title", nil)
	}
	return canonical.Detail, nil
}
