package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"marquee/internal/movie"
	"marquee/internal/services"
)

// shape recognizes one upstream layout and returns the object holding the
// title fields.
type shape struct {
	name  string
	match func(raw map[string]any) (map[string]any, bool)
}

var shapes = []shape{
	{name: "flat", match: matchFlat},
	{name: "envelope", match: matchEnvelope},
	{name: "bare", match: func(raw map[string]any) (map[string]any, bool) { return raw, true }},
}

var envelopeKeys = []string{"details", "movieInfo"}

func matchFlat(raw map[string]any) (map[string]any, bool) {
	return raw, firstString(raw, idKeys...) != ""
}

func matchEnvelope(raw map[string]any) (map[string]any, bool) {
	for _, key := range envelopeKeys {
		inner, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		if firstString(inner, idKeys...) != "" || firstString(inner, titleKeys...) != "" {
			return inner, true
		}
	}
	return nil, false
}

// Normalize maps raw to a canonical record.
func Normalize(raw map[string]any, hints Hints) Result {
	if raw == nil {
		return InsufficientData{Reason: "empty record"}
	}
	for _, s := range shapes {
		obj, ok := s.match(raw)
		if !ok {
			continue
		}
		detail := extract(obj, hints)
		if detail.ID == "" && detail.Title == "" {
			return InsufficientData{Reason: "record has neither id nor title"}
		}
		return Canonical{Detail: detail, Shape: s.name}
	}
	return InsufficientData{Reason: "no matching record shape"}
}

// NormalizeJSON decodes data and normalizes it. Undecodable input is reported
// as ErrMalformedInput; a decodable object without id or title yields
// InsufficientData with a nil error.
func NormalizeJSON(data []byte, hints Hints) (Result, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, hints), nil
}

// Decode parses a JSON object, keeping numbers exact.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, services.Wrap(services.ErrMalformedInput, "normalize", "decode", "record is not a JSON object", err)
	}
	if raw == nil {
		return nil, services.Wrap(services.ErrMalformedInput, "normalize", "decode", "record is null", nil)
	}
	return raw, nil
}

var (
	idKeys             = []string{"movieCd", "id"}
	titleKeys          = []string{"movieNm", "title", "movieNmEn"}
	titleEnKeys        = []string{"movieNmEn", "titleEn"}
	dateKeys           = []string{"openDt", "openDtStr", "releaseDate", "release_date"}
	productionYearKeys = []string{"prdtYear", "productionYear"}
	runtimeKeys        = []string{"showTm", "runtimeMinutes", "runtime"}
	audienceKeys       = []string{"audiAcc", "cumulativeAudience"}
)

func extract(obj map[string]any, hints Hints) movie.Detail {
	d := movie.Detail{
		ID:             firstString(obj, idKeys...),
		Title:          firstString(obj, titleKeys...),
		TitleEn:        firstString(obj, titleEnKeys...),
		ProductionYear: yearValue(firstString(obj, productionYearKeys...)),
		Origin:         originClass(obj),
		Rating:         rating(obj),
		Genres:         genres(obj),
		Contributors:   contributors(obj),
		Companies:      companies(obj),
	}
	if d.ID == "" {
		d.ID = strings.TrimSpace(hints.ID)
	}
	for _, key := range dateKeys {
		if date := ParseDate(firstString(obj, key)); date != "" {
			d.ReleaseDate = date
			break
		}
	}
	switch {
	case d.ReleaseDate != "":
		d.ReleaseYear = d.ReleaseDate[:4]
	case yearValue(hints.Year) != "":
		d.ReleaseYear = yearValue(hints.Year)
	case yearValue(firstString(obj, "releaseYear")) != "":
		d.ReleaseYear = yearValue(firstString(obj, "releaseYear"))
	default:
		d.ReleaseYear = movie.UnknownYear
	}
	if n, ok := firstInt(obj, runtimeKeys...); ok && n > 0 {
		d.RuntimeMinutes = int(n)
	}
	if n, ok := firstInt(obj, audienceKeys...); ok && n >= 0 {
		d.Audience = movie.Int64Ptr(n)
	}
	d.Canonicalize()
	return d
}

// Describe renders a short description of r for logs.
func Describe(r Result) string {
	switch v := r.(type) {
	case Canonical:
		return fmt.Sprintf("canonical(%s) %s", v.Shape, v.Detail.ID)
	case InsufficientData:
		return "insufficient: " + v.Reason
	default:
		return "unknown"
	}
}
