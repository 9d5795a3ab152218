package index

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"marquee/internal/detailcache"
	"marquee/internal/fileutil"
	"marquee/internal/logging"
	"marquee/internal/services"
)

// ErrEmptyIndex is returned when a build found no usable records. Existing
// artifacts are left in place.
var ErrEmptyIndex = errors.New("index build produced no rows")

// Source yields cached records. *detailcache.Cache satisfies it.
type Source interface {
	ScanAll() iter.Seq2[detailcache.Entry, error]
}

// Result summarizes one build.
type Result struct {
	Scanned    int
	Movies     int
	People     int
	Skipped    int
	Duplicates int
	MoviesPath string
	PeoplePath string
}

// Builder writes the movie and person indexes.
type Builder struct {
	source Source
	outDir string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces the clock used for generatedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder returns a builder reading from source and writing into outDir.
func NewBuilder(source Source, outDir string, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		source: source,
		outDir: outDir,
		logger: logging.NewComponentLogger(logger, "index"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build scans the whole cache and publishes both artifacts. Malformed records
// are skipped and counted. It never touches the network.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	logger := logging.WithContext(ctx, b.logger)
	result := Result{
		MoviesPath: filepath.Join(b.outDir, MoviesFile),
		PeoplePath: filepath.Join(b.outDir, PeopleFile),
	}

	acc := NewAccumulator()
	for entry, err := range b.source.ScanAll() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		result.Scanned++
		if err != nil {
			result.Skipped++
			logger.Debug("skipping unreadable record",
				logging.String("path", entry.Path),
				logging.ErrorKind(err),
				logging.Error(err),
			)
			continue
		}
		if !acc.Add(entry.Detail) && !entry.Detail.Valid() {
			result.Skipped++
		}
	}
	result.Duplicates = acc.Duplicates()

	if acc.Len() == 0 {
		logging.WarnWithContext(logger, "index build found no usable records", "index_empty",
			logging.Int("scanned", result.Scanned),
			logging.Int("skipped", result.Skipped),
			logging.String(logging.FieldErrorHint, "check paths.movies_dir and that the details stage has run"),
			logging.String(logging.FieldImpact, "previously published indexes were left unchanged"),
		)
		return result, services.Wrap(services.ErrPermanent, "index", "build", "refusing to publish", ErrEmptyIndex)
	}

	generated := b.now().Unix()
	movies := acc.Movies()
	people := acc.People()
	result.Movies = len(movies)
	result.People = len(people)

	moviesDoc, err := encodeDocument(result.MoviesPath, MovieIndex{GeneratedAt: generated, Count: len(movies), Movies: movies})
	if err != nil {
		return result, err
	}
	peopleDoc, err := encodeDocument(result.PeoplePath, PersonIndex{GeneratedAt: generated, Count: len(people), People: people})
	if err != nil {
		return result, err
	}
	if err := writeDocument(result.MoviesPath, moviesDoc); err != nil {
		return result, err
	}
	if err := writeDocument(result.PeoplePath, peopleDoc); err != nil {
		logging.WarnWithContext(logger, "people index write failed after movies index was published", "index_partial_publish",
			logging.String("people_path", result.PeoplePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the search directory and rerun marquee index"),
			logging.String(logging.FieldImpact, "movies.json is newer than people.json until the next build"),
		)
		return result, err
	}

	if result.Skipped > 0 {
		logging.WarnWithContext(logger, "index build skipped malformed records", "index_records_skipped",
			logging.Int("skipped", result.Skipped),
			logging.String(logging.FieldErrorHint, "run with --log-level debug to list the files"),
			logging.String(logging.FieldImpact, "skipped titles are missing from the published indexes"),
		)
	}
	logger.Info("indexes published",
		logging.Int("movies", result.Movies),
		logging.Int("people", result.People),
		logging.Int("skipped", result.Skipped),
		logging.Int("duplicates", result.Duplicates),
		logging.String("search_dir", b.outDir),
	)
	return result, nil
}

// Encode renders an index document with two-space indentation, leaving
// non-ASCII text and HTML characters unescaped.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeDocument(path string, v any) ([]byte, error) {
	data, err := Encode(v)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, "index", "encode", filepath.Base(path), err)
	}
	return data, nil
}

func writeDocument(path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrPermanent, "index", "write", path, err)
	}
	return nil
}
