package movie_test

import (
	"testing"

	"marquee/internal/movie"
)

func TestMaxAudienceIsMonotonic(t *testing.T) {
	cases := []struct {
		name     string
		current  *int64
		observed *int64
		want     *int64
	}{
		{"both unknown", nil, nil, nil},
		{"first observation", nil, movie.Int64Ptr(10), movie.Int64Ptr(10)},
		{"unknown keeps current", movie.Int64Ptr(10), nil, movie.Int64Ptr(10)},
		{"larger wins", movie.Int64Ptr(10), movie.Int64Ptr(20), movie.Int64Ptr(20)},
		{"smaller ignored", movie.Int64Ptr(20), movie.Int64Ptr(5), movie.Int64Ptr(20)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := movie.MaxAudience(tc.current, tc.observed)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("got %d, want %d", *got, *tc.want)
			}
		})
	}
}

func TestYearFallsBackToDateThenUnknown(t *testing.T) {
	if got := (movie.Detail{ReleaseYear: "1999", ReleaseDate: "20200101"}).Year(); got != "1999" {
		t.Fatalf("explicit year: got %q", got)
	}
	if got := (movie.Detail{ReleaseDate: "20200101"}).Year(); got != "2020" {
		t.Fatalf("date year: got %q", got)
	}
	if got := (movie.Detail{}).Year(); got != movie.UnknownYear {
		t.Fatalf("unknown year: got %q", got)
	}
}

func TestReleasedRejectsMalformedDates(t *testing.T) {
	if _, ok := (movie.Detail{ReleaseDate: "20201341"}).Released(); ok {
		t.Fatal("expected invalid month to be rejected")
	}
	got, ok := (movie.Detail{ReleaseDate: "20200229"}).Released()
	if !ok || got.Day() != 29 {
		t.Fatalf("expected leap day, got %v ok=%v", got, ok)
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := movie.Detail{
		ID:           "1",
		Title:        "T",
		Genres:       []string{"drama"},
		Audience:     movie.Int64Ptr(3),
		Contributors: []movie.ContributorRef{{Name: "A", Role: movie.RoleActor}},
	}
	c := d.Clone()
	c.Genres[0] = "comedy"
	*c.Audience = 9
	c.Contributors[0].Name = "B"
	if d.Genres[0] != "drama" || *d.Audience != 3 || d.Contributors[0].Name != "A" {
		t.Fatalf("clone shares state with original: %+v", d)
	}
}

func TestCanonicalizeFillsDefaults(t *testing.T) {
	d := movie.Detail{ID: "1", Title: "T", ReleaseDate: "20210501"}
	d.Canonicalize()
	if d.Genres == nil || d.Contributors == nil {
		t.Fatal("expected empty collections")
	}
	if d.Origin != movie.OriginUnknown || d.ReleaseYear != "2021" {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}
