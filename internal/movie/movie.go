// Package movie defines the canonical title record shared by the cache, the
// fetch stages, and the index builder.
package movie

import (
	"slices"
	"strings"
	"time"
)

// UnknownYear is the partition and index bucket for titles without a usable release year.
const UnknownYear = "unknown"

// DateLayout is the compact calendar form used for every stored date.
const DateLayout = "20060102"

// OriginClass describes whether a title is a domestic or foreign production.
type OriginClass string

const (
	OriginDomestic OriginClass = "domestic"
	OriginForeign  OriginClass = "foreign"
	OriginUnknown  OriginClass = "unknown"
)

// Role tags a contributor entry.
type Role string

const (
	RoleDirector Role = "director"
	RoleActor    Role = "actor"
)

// ContributorRef is one person credited on a title.
type ContributorRef struct {
	PersonID string `json:"personId,omitempty"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Part     string `json:"part,omitempty"`
}

// Detail is the canonical record for one title.
type Detail struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	TitleEn        string           `json:"titleEn,omitempty"`
	ReleaseDate    string           `json:"releaseDate,omitempty"`
	ReleaseYear    string           `json:"releaseYear"`
	ProductionYear string           `json:"productionYear,omitempty"`
	RuntimeMinutes int              `json:"runtimeMinutes,omitempty"`
	Origin         OriginClass      `json:"originClass"`
	Rating         string           `json:"rating,omitempty"`
	Genres         []string         `json:"genres"`
	Audience       *int64           `json:"cumulativeAudience,omitempty"`
	Contributors   []ContributorRef `json:"contributors"`
	Companies      []string         `json:"companies,omitempty"`
}

// Valid reports whether d carries the minimum fields a cached record needs.
func (d Detail) Valid() bool {
	return strings.TrimSpace(d.ID) != "" && strings.TrimSpace(d.Title) != ""
}

// Year returns the partition key for d.
func (d Detail) Year() string {
	if y := strings.TrimSpace(d.ReleaseYear); y != "" {
		return y
	}
	if len(d.ReleaseDate) >= 4 {
		return d.ReleaseDate[:4]
	}
	return UnknownYear
}

// Released parses ReleaseDate. ok is false when the date is absent or malformed.
func (d Detail) Released() (time.Time, bool) {
	if len(d.ReleaseDate) != 8 {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, d.ReleaseDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasContributors reports whether any director or actor is credited.
func (d Detail) HasContributors() bool {
	return len(d.Contributors) > 0
}

// Names returns the display names credited with role, in credit order.
func (d Detail) Names(role Role) []string {
	var names []string
	for _, c := range d.Contributors {
		if c.Role == role {
			names = append(names, c.Name)
		}
	}
	return names
}

// Clone returns a deep copy of d.
func (d Detail) Clone() Detail {
	out := d
	out.Genres = slices.Clone(d.Genres)
	out.Contributors = slices.Clone(d.Contributors)
	out.Companies = slices.Clone(d.Companies)
	if d.Audience != nil {
		v := *d.Audience
		out.Audience = &v
	}
	return out
}

// Canonicalize replaces nil collections with empty ones so encoded documents
// are stable regardless of how the record was built.
func (d *Detail) Canonicalize() {
	if d.Genres == nil {
		d.Genres = []string{}
	}
	if d.Contributors == nil {
		d.Contributors = []ContributorRef{}
	}
	if d.Origin == "" {
		d.Origin = OriginUnknown
	}
	if strings.TrimSpace(d.ReleaseYear) == "" {
		d.ReleaseYear = d.Year()
	}
}

// MaxAudience merges two cumulative audience observations. The result never
// decreases: nil means unknown and never replaces a known figure.
func MaxAudience(current, observed *int64) *int64 {
	switch {
	case observed == nil:
		return current
	case current == nil || *observed > *current:
		v := *observed
		return &v
	default:
		return current
	}
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
