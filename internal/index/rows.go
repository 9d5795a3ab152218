package index

import "marquee/internal/movie"

const (
	// MoviesFile and PeopleFile are the artifact names inside the search directory.
	MoviesFile = "movies.json"
	PeopleFile = "people.json"

	// undatedSortKey sorts records without a release date ahead of every real date.
	undatedSortKey = "00000000"
	namePrefix     = "NM:"
)

// MovieRow is one title in the movie index.
type MovieRow struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	TitleEn        string            `json:"titleEn,omitempty"`
	ReleaseDate    string            `json:"releaseDate"`
	ReleaseYear    string            `json:"releaseYear"`
	ProductionYear string            `json:"productionYear,omitempty"`
	Origin         movie.OriginClass `json:"originClass"`
	Rating         string            `json:"rating"`
	Genres         []string          `json:"genres"`
	Audience       *int64            `json:"cumulativeAudience"`
	Directors      []string          `json:"directors"`
}

// FilmographyEntry is one credit in a person's filmography.
type FilmographyEntry struct {
	MovieID     string     `json:"movieId"`
	MovieTitle  string     `json:"movieTitle"`
	ReleaseDate string     `json:"releaseDate"`
	Role        movie.Role `json:"role"`
	Part        string     `json:"part,omitempty"`
}

// PersonRow is one deduplicated contributor.
type PersonRow struct {
	Key         string             `json:"key"`
	PersonID    string             `json:"personId,omitempty"`
	DisplayName string             `json:"displayName"`
	PrimaryRole movie.Role         `json:"primaryRole"`
	Filmography []FilmographyEntry `json:"filmography"`
}

// MovieIndex is the movies.json document.
type MovieIndex struct {
	GeneratedAt int64      `json:"generatedAt"`
	Count       int        `json:"count"`
	Movies      []MovieRow `json:"movies"`
}

// PersonIndex is the people.json document.
type PersonIndex struct {
	GeneratedAt int64       `json:"generatedAt"`
	Count       int         `json:"count"`
	People      []PersonRow `json:"people"`
}
