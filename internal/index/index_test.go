package index_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"marquee/internal/detailcache"
	"marquee/internal/index"
	"marquee/internal/logging"
	"marquee/internal/movie"
	"marquee/internal/services"
)

type sliceSource struct {
	entries []detailcache.Entry
	errs    map[int]error
}

func (s sliceSource) ScanAll() iter.Seq2[detailcache.Entry, error] {
	return func(yield func(detailcache.Entry, error) bool) {
		for i, entry := range s.entries {
			if !yield(entry, s.errs[i]) {
				return
			}
		}
	}
}

func entriesOf(details ...movie.Detail) []detailcache.Entry {
	out := make([]detailcache.Entry, 0, len(details))
	for _, d := range details {
		out = append(out, detailcache.Entry{ID: d.ID, Detail: d})
	}
	return out
}

func actor(id, name string) movie.ContributorRef {
	return movie.ContributorRef{PersonID: id, Name: name, Role: movie.RoleActor}
}

func TestMoviesOrderedByDateWithUndatedFirst(t *testing.T) {
	acc := index.NewAccumulator()
	acc.Add(movie.Detail{ID: "B", Title: "b", ReleaseDate: "20210501"})
	acc.Add(movie.Detail{ID: "A", Title: "a", ReleaseDate: "20200101"})
	acc.Add(movie.Detail{ID: "C", Title: "c"})

	rows := acc.Movies()
	got := []string{rows[0].ID, rows[1].ID, rows[2].ID}
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if rows[0].ReleaseYear != movie.UnknownYear {
		t.Fatalf("undated row should report unknown year, got %q", rows[0].ReleaseYear)
	}
}

func TestEndToEndPersonIndex(t *testing.T) {
	root := t.TempDir()
	cache := detailcache.New(filepath.Join(root, "movies"), nil)
	for _, d := range []movie.Detail{
		{ID: "M1", Title: "first", ReleaseDate: "20200101", Contributors: []movie.ContributorRef{actor("P1", "A")}},
		{ID: "M2", Title: "second", ReleaseDate: "20210101", Contributors: []movie.ContributorRef{actor("P1", "A")}},
		{ID: "M3", Title: "third", Contributors: []movie.ContributorRef{actor("", "A")}},
	} {
		if _, err := cache.Upsert(d); err != nil {
			t.Fatalf("Upsert %s: %v", d.ID, err)
		}
	}

	searchDir := filepath.Join(root, "search")
	result, err := index.NewBuilder(cache, searchDir, nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Movies != 3 || result.People != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	data, err := os.ReadFile(result.PeoplePath)
	if err != nil {
		t.Fatalf("read people: %v", err)
	}
	var doc index.PersonIndex
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode people: %v", err)
	}
	if doc.Count != 2 || len(doc.People) != 2 {
		t.Fatalf("expected two people, got %+v", doc)
	}
	byKey := map[string]index.PersonRow{}
	for _, p := range doc.People {
		byKey[p.Key] = p
	}
	withID, ok := byKey["P1"]
	if !ok || len(withID.Filmography) != 2 ||
		withID.Filmography[0].MovieID != "M2" || withID.Filmography[1].MovieID != "M1" {
		t.Fatalf("unexpected P1 row %+v", withID)
	}
	byName, ok := byKey["NM:a"]
	if !ok || len(byName.Filmography) != 1 || byName.Filmography[0].MovieID != "M3" {
		t.Fatalf("unexpected synthesized row %+v (keys %v)", byName, byKey)
	}
}

func TestPeopleDeduplicateByIDAndNormalizedName(t *testing.T) {
	acc := index.NewAccumulator()
	acc.Add(movie.Detail{ID: "1", Title: "one", ReleaseDate: "20190101", Contributors: []movie.ContributorRef{
		actor("P9", "Kim Ji"),
		actor("", "Lee  Min"),
	}})
	acc.Add(movie.Detail{ID: "2", Title: "two", ReleaseDate: "20200101", Contributors: []movie.ContributorRef{
		actor("P9", "KIM JI"),
		actor("", "lee min"),
	}})

	people := acc.People()
	if len(people) != 2 {
		t.Fatalf("expected two people, got %+v", people)
	}
	for _, p := range people {
		if len(p.Filmography) != 2 {
			t.Fatalf("%s should have two credits, got %+v", p.Key, p.Filmography)
		}
	}
	if people[0].DisplayName != "Kim Ji" || people[1].DisplayName != "Lee Min" {
		t.Fatalf("display names should come from the earliest title, got %q and %q",
			people[0].DisplayName, people[1].DisplayName)
	}
}

func TestPrimaryRoleIsSticky(t *testing.T) {
	acc := index.NewAccumulator()
	acc.Add(movie.Detail{ID: "late", Title: "late", ReleaseDate: "20220101", Contributors: []movie.ContributorRef{
		actor("P1", "Bong"),
	}})
	acc.Add(movie.Detail{ID: "early", Title: "early", ReleaseDate: "20000101", Contributors: []movie.ContributorRef{
		{PersonID: "P1", Name: "Bong", Role: movie.RoleDirector},
	}})

	people := acc.People()
	if len(people) != 1 || people[0].PrimaryRole != movie.RoleDirector {
		t.Fatalf("expected first observed role director, got %+v", people)
	}
}

func TestFilmographyCreditsEachMovieOnce(t *testing.T) {
	acc := index.NewAccumulator()
	acc.Add(movie.Detail{ID: "1", Title: "self", ReleaseDate: "20200101", Contributors: []movie.ContributorRef{
		{PersonID: "P1", Name: "Auteur", Role: movie.RoleDirector},
		{PersonID: "P1", Name: "Auteur", Role: movie.RoleActor, Part: "cameo"},
	}})
	acc.Add(movie.Detail{ID: "0", Title: "undated", Contributors: []movie.ContributorRef{actor("P1", "Auteur")}})
	acc.Add(movie.Detail{ID: "2", Title: "same day", ReleaseDate: "20200101", Contributors: []movie.ContributorRef{actor("P1", "Auteur")}})

	people := acc.People()
	if len(people) != 1 {
		t.Fatalf("expected one person, got %d", len(people))
	}
	films := people[0].Filmography
	got := []string{films[0].MovieID, films[1].MovieID, films[2].MovieID}
	want := []string{"1", "2", "0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filmography = %v, want %v", got, want)
		}
	}
}

func TestDuplicateIDsAreCountedOnce(t *testing.T) {
	acc := index.NewAccumulator()
	if !acc.Add(movie.Detail{ID: "1", Title: "a"}) {
		t.Fatalf("first add should succeed")
	}
	if acc.Add(movie.Detail{ID: "1", Title: "a again"}) {
		t.Fatalf("duplicate add should be ignored")
	}
	if acc.Len() != 1 || acc.Duplicates() != 1 {
		t.Fatalf("unexpected len=%d duplicates=%d", acc.Len(), acc.Duplicates())
	}
}

func TestBuildIsDeterministicApartFromTimestamp(t *testing.T) {
	source := sliceSource{entries: entriesOf(
		movie.Detail{ID: "2", Title: "둘", ReleaseDate: "20200101", Genres: []string{"드라마"},
			Contributors: []movie.ContributorRef{actor("P2", "배우"), {Name: "감독", Role: movie.RoleDirector}}},
		movie.Detail{ID: "1", Title: "하나 & <특별판>", ReleaseDate: "20190101", Audience: movie.Int64Ptr(12),
			Contributors: []movie.ContributorRef{actor("P2", "배우")}},
	)}

	type arrays struct {
		GeneratedAt int64           `json:"generatedAt"`
		Movies      json.RawMessage `json:"movies"`
		People      json.RawMessage `json:"people"`
	}
	read := func(path string) arrays {
		t.Helper()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		var out arrays
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return out
	}

	dir := t.TempDir()
	first, err := index.NewBuilder(source, dir, nil, index.WithClock(func() time.Time { return time.Unix(100, 0) })).Build(context.Background())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	m1, p1 := read(first.MoviesPath), read(first.PeoplePath)

	second, err := index.NewBuilder(source, dir, nil, index.WithClock(func() time.Time { return time.Unix(200, 0) })).Build(context.Background())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	m2, p2 := read(second.MoviesPath), read(second.PeoplePath)

	if string(m1.Movies) != string(m2.Movies) || string(p1.People) != string(p2.People) {
		t.Fatalf("arrays differ between builds")
	}
	if m1.GeneratedAt != 100 || m2.GeneratedAt != 200 {
		t.Fatalf("unexpected timestamps %d %d", m1.GeneratedAt, m2.GeneratedAt)
	}

	raw, _ := os.ReadFile(first.MoviesPath)
	if !strings.Contains(string(raw), "하나 & <특별판>") {
		t.Fatalf("titles should be written without escaping: %s", raw)
	}
}

func TestBuildRefusesToPublishEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, index.MoviesFile)
	if err := os.WriteFile(existing, []byte(`{"count":1}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := sliceSource{
		entries: []detailcache.Entry{{Path: "broken.json"}},
		errs:    map[int]error{0: services.Wrap(services.ErrMalformedInput, "detailcache", "read", "broken", nil)},
	}
	result, err := index.NewBuilder(source, dir, nil).Build(context.Background())
	if !errors.Is(err, index.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected one skipped record, got %+v", result)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != `{"count":1}` {
		t.Fatalf("existing index was overwritten: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, index.PeopleFile)); !os.IsNotExist(err) {
		t.Fatalf("people index should not be created")
	}
}

func TestBuildSkipsMalformedRecordsAndContinues(t *testing.T) {
	source := sliceSource{
		entries: append(entriesOf(movie.Detail{ID: "1", Title: "ok"}), detailcache.Entry{Path: "bad.json"}, detailcache.Entry{ID: "x"}),
		errs:    map[int]error{1: services.Wrap(services.ErrMalformedInput, "detailcache", "read", "bad", nil)},
	}
	result, err := index.NewBuilder(source, t.TempDir(), nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Movies != 1 || result.Skipped != 2 || result.Scanned != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFilmographyKeepsActorPartForDirectorCredit(t *testing.T) {
	acc := index.NewAccumulator()
	acc.Add(movie.Detail{ID: "1", Title: "self", ReleaseDate: "20200101", Contributors: []movie.ContributorRef{
		{PersonID: "P1", Name: "Auteur", Role: movie.RoleDirector},
		{PersonID: "P1", Name: "Auteur", Role: movie.RoleActor, Part: "cameo"},
	}})

	people := acc.People()
	if len(people) != 1 || len(people[0].Filmography) != 1 {
		t.Fatalf("expected one person with one credit, got %+v", people)
	}
	credit := people[0].Filmography[0]
	if credit.Role != movie.RoleDirector || credit.Part != "cameo" {
		t.Fatalf("expected director credit carrying part cameo, got %+v", credit)
	}
}

func TestBuildWarnsWhenPeopleWriteFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, index.PeopleFile)
	if err := os.MkdirAll(filepath.Join(blocker, "occupied"), 0o755); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	source := sliceSource{entries: entriesOf(movie.Detail{ID: "1", Title: "a", Contributors: []movie.ContributorRef{actor("P1", "Kim")}})}
	_, err = index.NewBuilder(source, dir, logger).Build(context.Background())
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent write error, got %v", err)
	}
	if !strings.Contains(buf.String(), `"event_type":"index_partial_publish"`) {
		t.Fatalf("expected partial publish warning, got %s", buf.String())
	}
}
