package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one human-readable line per record:
//
//	15:04:05.000 INFO  consolidate: [demo · prompt · camera · frame 3] message key=value
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// subject holds the attrs lifted out of key=value pairs into the bracketed prefix.
type subject struct {
	component string
	demo      string
	prompt    string
	camera    string
	frame     string
}

// take consumes pair when it belongs to the subject.
func (s *subject) take(pair kv) bool {
	var dst *string
	switch pair.key {
	case FieldComponent:
		dst = &s.component
	case FieldDemo:
		dst = &s.demo
	case FieldPrompt:
		dst = &s.prompt
	case FieldCamera:
		dst = &s.camera
	case FieldFrame:
		dst = &s.frame
	default:
		return false
	}
	*dst = strings.TrimSpace(attrString(pair.value))
	return true
}

func (s subject) String() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{s.demo, s.prompt, s.camera} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if s.frame != "" {
		parts = append(parts, "frame "+s.frame)
	}
	return strings.Join(parts, " · ")
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	pairs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		flattenAttr(&pairs, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&pairs, h.groups, attr)
		return true
	})

	var subj subject
	rest := pairs[:0]
	for _, pair := range lastByKey(pairs) {
		if subj.take(pair) || pair.key == "" {
			continue
		}
		if record.Level >= slog.LevelInfo && isDebugOnlyKey(pair.key) {
			continue
		}
		rest = append(rest, pair)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if subj.component != "" {
		buf.WriteString(subj.component + ": ")
	}
	if prefix := subj.String(); prefix != "" {
		buf.WriteString("[" + prefix + "] ")
	}
	buf.WriteString(message)
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, pair := range rest {
		buf.WriteString(" " + pair.key + "=" + formatValue(pair.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// isDebugOnlyKey hides verbose diagnostics from INFO console lines. JSON
// output always carries them.
func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldRunID, "estimator_command", "staging_path", "lock_path":
		return true
	}
	return false
}

type kv struct {
	key   string
	value slog.Value
}

// lastByKey keeps the last value for each key at the position of its first
// occurrence.
func lastByKey(pairs []kv) []kv {
	if len(pairs) < 2 {
		return pairs
	}
	index := make(map[string]int, len(pairs))
	out := make([]kv, 0, len(pairs))
	for _, pair := range pairs {
		if pos, ok := index[pair.key]; ok {
			out[pos] = pair
			continue
		}
		index[pair.key] = len(out)
		out = append(out, pair)
	}
	return out
}

// flattenAttr appends attr to dst, expanding groups into dotted keys.
func flattenAttr(dst *[]kv, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	path := groups
	if attr.Key != "" {
		path = append(append([]string(nil), groups...), attr.Key)
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			flattenAttr(dst, path, child)
		}
		return
	}
	*dst = append(*dst, kv{key: strings.Join(path, "."), value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
