package candidates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"marquee/internal/fileutil"
	"marquee/internal/normalize"
	"marquee/internal/services"
)

const (
	filePrefix = "year-"
	fileExt    = ".json"
)

// YearFile is the stored candidate list for one year.
type YearFile struct {
	Year       int              `json:"year"`
	TotalCount int              `json:"totCnt"`
	MovieList  []map[string]any `json:"movieList"`
	MovieCds   []string         `json:"movieCds,omitempty"`
}

// Candidates returns the union of MovieCds and the movieCd of every listed
// title, sorted and without duplicates.
func (y YearFile) Candidates() []string {
	set := make(map[string]struct{}, len(y.MovieCds)+len(y.MovieList))
	for _, id := range y.MovieCds {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	for _, row := range y.MovieList {
		if id := listedID(row); id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func listedID(row map[string]any) string {
	switch v := row["movieCd"].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// Store reads and writes year files in one directory.
type Store struct {
	dir string
}

// NewStore returns a store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file for year.
func (s *Store) Path(year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", filePrefix, year, fileExt))
}

// Exists reports whether a year file is present.
func (s *Store) Exists(year int) (bool, error) {
	return fileutil.Exists(s.Path(year))
}

// Load reads the file for year. A missing file yields an empty list and ok=false.
func (s *Store) Load(year int) (YearFile, bool, error) {
	data, err := os.ReadFile(s.Path(year))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return YearFile{Year: year}, false, nil
		}
		return YearFile{}, false, services.Wrap(services.ErrPermanent, "candidates", "load", s.Path(year), err)
	}
	raw, err := normalize.Decode(data)
	if err != nil {
		return YearFile{}, false, err
	}
	yf := YearFile{Year: year}
	if n, ok := raw["totCnt"].(json.Number); ok {
		if v, convErr := n.Int64(); convErr == nil {
			yf.TotalCount = int(v)
		}
	}
	if list, ok := raw["movieList"].([]any); ok {
		for _, item := range list {
			if row, ok := item.(map[string]any); ok {
				yf.MovieList = append(yf.MovieList, row)
			}
		}
	}
	if ids, ok := raw["movieCds"].([]any); ok {
		for _, item := range ids {
			switch v := item.(type) {
			case string:
				yf.MovieCds = append(yf.MovieCds, v)
			case json.Number:
				yf.MovieCds = append(yf.MovieCds, v.String())
			}
		}
	}
	return yf, true, nil
}

// Save writes yf atomically.
func (s *Store) Save(yf YearFile) error {
	if yf.MovieList == nil {
		yf.MovieList = []map[string]any{}
	}
	data, err := json.MarshalIndent(yf, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrPermanent, "candidates", "encode", strconv.Itoa(yf.Year), err)
	}
	if err := fileutil.WriteFileAtomic(s.Path(yf.Year), append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrPermanent, "candidates", "save", s.Path(yf.Year), err)
	}
	return nil
}

// Candidates returns the sorted candidate ids for year.
func (s *Store) Candidates(year int) ([]string, error) {
	yf, _, err := s.Load(year)
	if err != nil {
		return nil, err
	}
	return yf.Candidates(), nil
}

// Years lists the years that have a stored file, ascending.
func (s *Store) Years() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPermanent, "candidates", "list", s.dir, err)
	}
	var years []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
		if err == nil {
			years = append(years, year)
		}
	}
	sort.Ints(years)
	return years, nil
}
