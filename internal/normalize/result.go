package normalize

import "marquee/internal/movie"

// Result is either Canonical or InsufficientData.
type Result interface {
	isResult()
}

// Canonical carries a normalized record. Detail.ID may still be empty when
// only a title was recoverable; callers that need a key check Detail.Valid.
type Canonical struct {
	Detail movie.Detail
	Shape  string
}

// InsufficientData reports that a record had neither an id nor a title.
type InsufficientData struct {
	Reason string
}

func (Canonical) isResult()        {}
func (InsufficientData) isResult() {}

// Hints supplies caller-known values used when the record itself omits them.
type Hints struct {
	// ID fills a missing identifier, e.g. the code the record was requested by.
	ID string
	// Year is the fallback release year, e.g. the partition the record was found in.
	Year string
}
