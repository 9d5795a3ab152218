package index

import (
	"cmp"
	"slices"
	"strings"

	"marquee/internal/movie"
	"marquee/internal/textutil"
)

// PersonKey returns the dedup key for a contributor: the external id when
// present, otherwise a key synthesized from the normalized display name.
// Distinct people sharing a name and lacking ids collapse into one key.
func PersonKey(c movie.ContributorRef) string {
	if id := strings.TrimSpace(c.PersonID); id != "" {
		return id
	}
	name := textutil.NormalizeName(c.Name)
	if name == "" {
		return ""
	}
	return namePrefix + name
}

type title struct {
	row          MovieRow
	contributors []movie.ContributorRef
}

type person struct {
	row     PersonRow
	// credits maps a movie id to its position in row.Filmography.
	credits map[string]int
}

// Accumulator collects records for one build. Person aggregation happens in
// movie-index order, so first-seen names and roles do not depend on the order
// records were added.
type Accumulator struct {
	titles     map[string]title
	duplicates int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{titles: make(map[string]title)}
}

// Add records d. A second record with an already seen id is counted and ignored.
func (a *Accumulator) Add(d movie.Detail) bool {
	if !d.Valid() {
		return false
	}
	if _, dup := a.titles[d.ID]; dup {
		a.duplicates++
		return false
	}
	d = d.Clone()
	d.Canonicalize()
	a.titles[d.ID] = title{
		row: MovieRow{
			ID:             d.ID,
			Title:          d.Title,
			TitleEn:        d.TitleEn,
			ReleaseDate:    d.ReleaseDate,
			ReleaseYear:    d.Year(),
			ProductionYear: d.ProductionYear,
			Origin:         d.Origin,
			Rating:         d.Rating,
			Genres:         d.Genres,
			Audience:       d.Audience,
			Directors:      nonNil(d.Names(movie.RoleDirector)),
		},
		contributors: d.Contributors,
	}
	return true
}

// Len returns the number of distinct titles added.
func (a *Accumulator) Len() int { return len(a.titles) }

// Duplicates returns how many records were dropped as repeated ids.
func (a *Accumulator) Duplicates() int { return a.duplicates }

// Movies returns the movie rows sorted by (release date, id), undated first.
func (a *Accumulator) Movies() []MovieRow {
	rows := make([]MovieRow, 0, len(a.titles))
	for _, t := range a.sortedTitles() {
		rows = append(rows, t.row)
	}
	return rows
}

// People returns the person rows sorted by display name then key, each with
// a filmography ordered newest first and undated credits last.
func (a *Accumulator) People() []PersonRow {
	people := make(map[string]*person)
	for _, t := range a.sortedTitles() {
		for _, c := range t.contributors {
			key := PersonKey(c)
			if key == "" {
				continue
			}
			p, ok := people[key]
			if !ok {
				p = &person{
					row: PersonRow{
						Key:         key,
						PersonID:    strings.TrimSpace(c.PersonID),
						DisplayName: textutil.CollapseSpace(c.Name),
						PrimaryRole: c.Role,
					},
					credits: make(map[string]int),
				}
				people[key] = p
			}
			if p.row.PrimaryRole == "" {
				p.row.PrimaryRole = c.Role
			}
			if pos, credited := p.credits[t.row.ID]; credited {
				if kept := &p.row.Filmography[pos]; kept.Part == "" {
					kept.Part = c.Part
				}
				continue
			}
			p.credits[t.row.ID] = len(p.row.Filmography)
			p.row.Filmography = append(p.row.Filmography, FilmographyEntry{
				MovieID:     t.row.ID,
				MovieTitle:  t.row.Title,
				ReleaseDate: t.row.ReleaseDate,
				Role:        c.Role,
				Part:        c.Part,
			})
		}
	}

	rows := make([]PersonRow, 0, len(people))
	for _, p := range people {
		if p.row.PrimaryRole == "" {
			p.row.PrimaryRole = movie.RoleActor
		}
		slices.SortFunc(p.row.Filmography, compareFilmography)
		rows = append(rows, p.row)
	}
	slices.SortFunc(rows, func(x, y PersonRow) int {
		return cmp.Or(
			cmp.Compare(x.DisplayName, y.DisplayName),
			cmp.Compare(x.Key, y.Key),
		)
	})
	return rows
}

func (a *Accumulator) sortedTitles() []title {
	titles := make([]title, 0, len(a.titles))
	for _, t := range a.titles {
		titles = append(titles, t)
	}
	slices.SortFunc(titles, func(x, y title) int {
		return cmp.Or(
			cmp.Compare(movieSortKey(x.row.ReleaseDate), movieSortKey(y.row.ReleaseDate)),
			cmp.Compare(x.row.ID, y.row.ID),
		)
	})
	return titles
}

func movieSortKey(date string) string {
	if date == "" {
		return undatedSortKey
	}
	return date
}

func compareFilmography(x, y FilmographyEntry) int {
	switch {
	case x.ReleaseDate == "" && y.ReleaseDate != "":
		return 1
	case x.ReleaseDate != "" && y.ReleaseDate == "":
		return -1
	}
	return cmp.Or(
		cmp.Compare(y.ReleaseDate, x.ReleaseDate),
		cmp.Compare(x.MovieID, y.MovieID),
	)
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
