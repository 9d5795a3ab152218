package logging

import (
	"log/slog"
	"strings"
)

// field is one flattened attribute; group members are keyed "group.key".
type field struct {
	key   string
	value slog.Value
}

type fieldSet []field

func (s *fieldSet) add(prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range value.Group() {
			s.add(next, member)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	*s = append(*s, field{key: key, value: value})
}

// latestWins drops empty keys and keeps the last value of repeated keys at the
// position the key first appeared.
func (s fieldSet) latestWins() fieldSet {
	index := make(map[string]int, len(s))
	out := make(fieldSet, 0, len(s))
	for _, f := range s {
		if f.key == "" {
			continue
		}
		if pos, ok := index[f.key]; ok {
			out[pos].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func (s fieldSet) get(key string) string {
	for _, f := range s {
		if f.key == key {
			return renderValue(f.value, false)
		}
	}
	return ""
}

const maxInfoValueLen = 120

// curatedOrder lists the keys shown first at info level, in display order.
var curatedOrder = []string{
	FieldEventType,
	FieldErrorKind,
	"error",
	FieldErrorHint,
	FieldImpact,
	"status",
	"year",
	"processed",
	"saved",
	"skipped",
	"failed",
	"calls",
	"remaining",
	"duration",
}

type shownField struct {
	label string
	value string
}

// curateFields returns the info-level fields in display order and how many
// were withheld from the console.
func curateFields(fields fieldSet) ([]shownField, int) {
	rank := make(map[string]int, len(curatedOrder))
	for i, key := range curatedOrder {
		rank[key] = i
	}
	ordered := make(fieldSet, 0, len(fields))
	for _, key := range curatedOrder {
		for _, f := range fields {
			if f.key == key {
				ordered = append(ordered, f)
			}
		}
	}
	for _, f := range fields {
		if _, ok := rank[f.key]; !ok {
			ordered = append(ordered, f)
		}
	}

	shown := make([]shownField, 0, len(ordered))
	hidden := 0
	for _, f := range ordered {
		if headerKey(f.key) {
			continue
		}
		if debugOnlyKey(f.key) {
			hidden++
			continue
		}
		value := consoleValue(f)
		if f.key != "error" && len(value) > maxInfoValueLen {
			hidden++
			continue
		}
		shown = append(shown, shownField{label: fieldLabel(f.key), value: value})
	}
	return shown, hidden
}

func consoleValue(f field) string {
	switch f.value.Kind() {
	case slog.KindDuration:
		return formatDurationHuman(f.value.Duration())
	case slog.KindBool:
		if f.value.Bool() {
			return "yes"
		}
		return "no"
	}
	value := renderValue(f.value, true)
	if f.key == "error" && len(value) > 2*maxInfoValueLen {
		value = value[:2*maxInfoValueLen] + "…"
	}
	return value
}

// headerKey reports keys already rendered in the header line.
func headerKey(key string) bool {
	return key == "" || key == FieldComponent || key == FieldStage || key == FieldMovieID
}

func debugOnlyKey(key string) bool {
	switch key {
	case FieldRunID, "url", "target_dt", "attempt_latency":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func fieldLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldErrorKind:
		return "Kind"
	case FieldErrorHint:
		return "Hint"
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
