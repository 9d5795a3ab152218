package detailcache_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"marquee/internal/detailcache"
	"marquee/internal/movie"
	"marquee/internal/services"
)

func sampleDetail() movie.Detail {
	return movie.Detail{
		ID:          "20183782",
		Title:       "기생충",
		TitleEn:     "Parasite",
		ReleaseDate: "20190530",
		Origin:      movie.OriginDomestic,
		Rating:      "15세이상관람가",
		Genres:      []string{"드라마"},
		Contributors: []movie.ContributorRef{
			{PersonID: "10001", Name: "봉준호", Role: movie.RoleDirector},
			{PersonID: "10002", Name: "송강호", Role: movie.RoleActor, Part: "기택"},
		},
	}
}

func scanByID(t *testing.T, cache *detailcache.Cache) map[string][]movie.Detail {
	t.Helper()
	out := make(map[string][]movie.Detail)
	for entry, err := range cache.ScanAll() {
		if err != nil {
			t.Fatalf("scan error for %s: %v", entry.Path, err)
		}
		out[entry.Detail.ID] = append(out[entry.Detail.ID], entry.Detail)
	}
	return out
}

func TestUpsertRoundTripThroughScan(t *testing.T) {
	cache := detailcache.New(t.TempDir(), nil)
	d := sampleDetail()

	outcome, err := cache.Upsert(d)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if outcome != detailcache.OutcomeCreated {
		t.Fatalf("expected created, got %s", outcome)
	}
	if _, err := os.Stat(cache.Path("2019", d.ID)); err != nil {
		t.Fatalf("expected record in 2019 partition: %v", err)
	}

	records := scanByID(t, cache)
	if len(records[d.ID]) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records[d.ID]))
	}
	want := d.Clone()
	want.Canonicalize()
	if got := records[d.ID][0]; !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	cache := detailcache.New(t.TempDir(), nil)
	d := sampleDetail()
	if _, err := cache.Upsert(d); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	before, err := os.ReadFile(cache.Path("2019", d.ID))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	outcome, err := cache.Upsert(d)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if outcome != detailcache.OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", outcome)
	}
	after, _ := os.ReadFile(cache.Path("2019", d.ID))
	if string(before) != string(after) {
		t.Fatalf("content changed on identical upsert")
	}
}

func TestAudienceMergesMonotonically(t *testing.T) {
	cache := detailcache.New(t.TempDir(), nil)
	d := sampleDetail()

	steps := []struct {
		name     string
		observed *int64
		want     *int64
	}{
		{"first figure", movie.Int64Ptr(100), movie.Int64Ptr(100)},
		{"lower figure is ignored", movie.Int64Ptr(50), movie.Int64Ptr(100)},
		{"unknown keeps stored", nil, movie.Int64Ptr(100)},
		{"higher figure wins", movie.Int64Ptr(200), movie.Int64Ptr(200)},
	}
	for _, step := range steps {
		d.Audience = step.observed
		if _, err := cache.Upsert(d); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got, ok, err := cache.Load(d.ID)
		if err != nil || !ok {
			t.Fatalf("%s: load failed ok=%v err=%v", step.name, ok, err)
		}
		if got.Audience == nil || *got.Audience != *step.want {
			t.Fatalf("%s: audience = %v, want %d", step.name, got.Audience, *step.want)
		}
	}
}

func TestUpsertMovesRecordBetweenPartitions(t *testing.T) {
	dir := t.TempDir()
	cache := detailcache.New(dir, nil)
	d := sampleDetail()
	d.ReleaseDate = ""
	d.Audience = movie.Int64Ptr(42)
	if _, err := cache.Upsert(d); err != nil {
		t.Fatalf("upsert unknown: %v", err)
	}
	if _, err := os.Stat(cache.Path(movie.UnknownYear, d.ID)); err != nil {
		t.Fatalf("expected unknown partition: %v", err)
	}

	d.ReleaseDate = "20190530"
	d.Audience = nil
	outcome, err := cache.Upsert(d)
	if err != nil {
		t.Fatalf("upsert dated: %v", err)
	}
	if outcome != detailcache.OutcomeUpdated {
		t.Fatalf("expected updated, got %s", outcome)
	}
	if _, err := os.Stat(cache.Path(movie.UnknownYear, d.ID)); !os.IsNotExist(err) {
		t.Fatalf("stale partition file should be removed, stat err=%v", err)
	}
	records := scanByID(t, cache)
	if len(records[d.ID]) != 1 {
		t.Fatalf("expected one record after move, got %d", len(records[d.ID]))
	}
	if got := records[d.ID][0].Audience; got == nil || *got != 42 {
		t.Fatalf("audience should survive partition move, got %v", got)
	}
}

func TestExistsUsesListingOfExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writer := detailcache.New(dir, nil)
	if _, err := writer.Upsert(sampleDetail()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reader := detailcache.New(dir, nil)
	ok, err := reader.Exists("20183782")
	if err != nil || !ok {
		t.Fatalf("expected existing record, ok=%v err=%v", ok, err)
	}
	ok, err = reader.Exists("99999999")
	if err != nil || ok {
		t.Fatalf("expected missing record, ok=%v err=%v", ok, err)
	}

	empty := detailcache.New(filepath.Join(dir, "missing"), nil)
	if ok, err := empty.Exists("20183782"); err != nil || ok {
		t.Fatalf("missing root should report absent, ok=%v err=%v", ok, err)
	}
}

func TestUpsertRejectsInvalidRecords(t *testing.T) {
	cache := detailcache.New(t.TempDir(), nil)

	if _, err := cache.Upsert(movie.Detail{ID: "1"}); !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input for missing title, got %v", err)
	}
	if _, err := cache.Upsert(movie.Detail{ID: "../escape", Title: "x"}); !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input for unsafe id, got %v", err)
	}
}

func TestScanSkipsPlaceholdersAndNormalizesLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	yearDir := filepath.Join(dir, "2012")
	if err := os.MkdirAll(yearDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	legacy := `{"movieCd":"20124079","movieNm":"광해, 왕이 된 남자","showTm":"131",
	  "directors":[{"peopleNm":"추창민"}],
	  "actors":[{"peopleNm":"이병헌","cast":"광해"}]}`
	files := map[string]string{
		"20124079.json":      legacy,
		".gitkeep":           "",
		".20124079.json.tmp": "{",
		"notes.txt":          "ignored",
		"broken.json":        "{not json",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(yearDir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cache := detailcache.New(dir, nil)
	var (
		found  []movie.Detail
		failed []string
	)
	for pass := 0; pass < 2; pass++ {
		found, failed = nil, nil
		for entry, err := range cache.ScanAll() {
			if err != nil {
				failed = append(failed, entry.ID)
				continue
			}
			found = append(found, entry.Detail)
		}
	}
	if len(found) != 1 || len(failed) != 1 || failed[0] != "broken" {
		t.Fatalf("unexpected scan result found=%d failed=%v", len(found), failed)
	}
	got := found[0]
	if got.ReleaseYear != "2012" || got.RuntimeMinutes != 131 {
		t.Fatalf("legacy record should take the partition year, got %+v", got)
	}
	if names := got.Names(movie.RoleActor); len(names) != 1 || names[0] != "이병헌" {
		t.Fatalf("unexpected actors %v", names)
	}
}

func TestCounts(t *testing.T) {
	cache := detailcache.New(t.TempDir(), nil)
	d := sampleDetail()
	if _, err := cache.Upsert(d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	undated := movie.Detail{ID: "20990001", Title: "미정"}
	if _, err := cache.Upsert(undated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	counts, err := cache.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := []detailcache.YearCount{{Year: "2019", Count: 1}, {Year: movie.UnknownYear, Count: 1}}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}
}
