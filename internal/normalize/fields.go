package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"marquee/internal/movie"
	"marquee/internal/textutil"
)

// ParseDate reduces a digit-bearing date to YYYYMMDD. Separators are ignored
// and digits past the eighth are dropped; anything that does not form a real
// calendar date yields "".
func ParseDate(value string) string {
	digits := textutil.Digits(value)
	if len(digits) < 8 {
		return ""
	}
	digits = digits[:8]
	if _, err := time.Parse(movie.DateLayout, digits); err != nil {
		return ""
	}
	return digits
}

func yearValue(value string) string {
	value = strings.TrimSpace(value)
	if len(value) != 4 || textutil.Digits(value) != value {
		return ""
	}
	return value
}

// scalarString renders a JSON scalar as text. Objects and arrays yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := scalarString(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// parseCount reads a non-negative count that may carry thousands separators.
func parseCount(v any) (int64, bool) {
	s := strings.ReplaceAll(scalarString(v), ",", "")
	if s == "" || s == "null" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f), true
	}
	return 0, false
}

func firstInt(obj map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if n, ok := parseCount(obj[key]); ok {
			return n, true
		}
	}
	return 0, false
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

const domesticMarker = "한국"

func originClass(obj map[string]any) movie.OriginClass {
	switch strings.ToUpper(firstString(obj, "repNation")) {
	case "K":
		return movie.OriginDomestic
	case "F":
		return movie.OriginForeign
	}
	switch movie.OriginClass(strings.ToLower(firstString(obj, "originClass"))) {
	case movie.OriginDomestic:
		return movie.OriginDomestic
	case movie.OriginForeign:
		return movie.OriginForeign
	}
	if text := firstString(obj, "nationAlt", "repNationNm"); text != "" {
		return classifyNation(text)
	}
	for _, entry := range asList(obj["nations"]) {
		var name string
		if m, ok := entry.(map[string]any); ok {
			name = firstString(m, "nationNm", "name")
		} else {
			name = scalarString(entry)
		}
		if name != "" {
			return classifyNation(name)
		}
	}
	return movie.OriginUnknown
}

func classifyNation(text string) movie.OriginClass {
	if strings.Contains(text, domesticMarker) {
		return movie.OriginDomestic
	}
	return movie.OriginForeign
}

// ratingSynonyms is keyed by the whitespace-free spelling.
var ratingSynonyms = map[string]string{
	"전체관람가":    "전체관람가",
	"12세이상관람가": "12세이상관람가",
	"15세이상관람가": "15세이상관람가",
	"청소년관람불가":  "청소년 관람불가",
}

// CanonicalRating collapses spacing variants of a known classification to one
// spelling. Unrecognized labels are returned trimmed but otherwise unchanged.
func CanonicalRating(label string) string {
	label = strings.TrimSpace(label)
	if canonical, ok := ratingSynonyms[textutil.StripSpace(label)]; ok {
		return canonical
	}
	return label
}

func rating(obj map[string]any) string {
	if label := firstString(obj, "grade", "watchGradeNm", "rating"); label != "" {
		return CanonicalRating(label)
	}
	for _, audit := range asList(obj["audits"]) {
		if m, ok := audit.(map[string]any); ok {
			if label := firstString(m, "watchGradeNm"); label != "" {
				return CanonicalRating(label)
			}
		}
	}
	return ""
}

func genres(obj map[string]any) []string {
	out := []string{}
	seen := map[string]struct{}{}
	add := func(name string) {
		name = textutil.CollapseSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, g := range asList(obj["genres"]) {
		if m, ok := g.(map[string]any); ok {
			add(firstString(m, "genreNm", "name"))
		} else {
			add(scalarString(g))
		}
	}
	if len(out) == 0 {
		for _, name := range textutil.SplitNames(firstString(obj, "genreAlt")) {
			add(name)
		}
	}
	return out
}

func companies(obj map[string]any) []string {
	var out []string
	for _, key := range []string{"companys", "companies"} {
		for _, c := range asList(obj[key]) {
			var name string
			if m, ok := c.(map[string]any); ok {
				name = firstString(m, "companyNm", "name")
			} else {
				name = scalarString(c)
			}
			if name = textutil.CollapseSpace(name); name != "" {
				out = append(out, name)
			}
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}
