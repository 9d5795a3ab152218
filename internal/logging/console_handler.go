package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleOutput is shared by a handler and every handler derived from it.
type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// consoleHandler renders one human-readable header line per record followed by
// indented fields. Info and above show a curated field list; debug shows all.
type consoleHandler struct {
	out       *consoleOutput
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{out: &consoleOutput{w: w}, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	fields := h.collect(record)

	var b strings.Builder
	b.Grow(256 + len(fields)*32)
	h.writeHeader(&b, record, fields)
	if record.Level < slog.LevelInfo {
		writeAllFields(&b, fields)
	} else {
		writeCuratedFields(&b, fields)
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

func (h *consoleHandler) collect(record slog.Record) fieldSet {
	fields := make(fieldSet, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields.add(h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.groups, attr)
		return true
	})
	return fields.latestWins()
}

// writeHeader renders "<time> <LEVEL> [component] stage · movie – message".
func (h *consoleHandler) writeHeader(b *strings.Builder, record slog.Record, fields fieldSet) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	if component := fields.get(FieldComponent); component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := composeSubject(fields.get(FieldStage), fields.get(FieldMovieID)); subject != "" {
		b.WriteString(" " + subject)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	b.WriteString(" – " + message)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	b.WriteByte('\n')
}

func composeSubject(stage, movieID string) string {
	stage = strings.TrimSpace(stage)
	movieID = strings.TrimSpace(movieID)
	switch {
	case stage != "" && movieID != "":
		return stage + " · " + movieID
	case movieID != "":
		return movieID
	default:
		return stage
	}
}

func writeAllFields(b *strings.Builder, fields fieldSet) {
	for _, f := range fields {
		if headerKey(f.key) {
			continue
		}
		b.WriteString("    " + f.key + ": " + renderValue(f.value, true) + "\n")
	}
}

func writeCuratedFields(b *strings.Builder, fields fieldSet) {
	shown, hidden := curateFields(fields)
	for _, f := range shown {
		b.WriteString("    - " + f.label + ": " + f.value + "\n")
	}
	switch {
	case hidden == 1:
		b.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		out:       h.out,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
