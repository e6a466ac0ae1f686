package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileName is the annotation mapping written next to a demonstration.
const FileName = "annotations.json"

// ParseError reports a malformed annotations file entry.
type ParseError struct {
	Path   string
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("annotations %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("annotations %s: entry %q: %s", e.Path, e.Key, e.Reason)
}

// ErrorKind classifies the error for the run ledger.
func (e *ParseError) ErrorKind() string { return "validation" }

// FileSource is a read-only Source loaded from annotations.json.
type FileSource struct {
	path    string
	entries map[Key]Frame
}

type rawEntry struct {
	Label string          `json:"label"`
	Value json.RawMessage `json:"value"`
}

// LoadFile parses an annotations file. A missing file returns an error that
// satisfies errors.Is(err, fs.ErrNotExist).
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes the {"<frame>_<camera>": [{"label": .., "value": ..}]} mapping.
// path is used only for error messages.
func Parse(path string, data []byte) (*FileSource, error) {
	var raw map[string][]rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	src := &FileSource{path: path, entries: make(map[Key]Frame, len(raw))}
	for rawKey, items := range raw {
		key, err := parseKey(rawKey)
		if err != nil {
			return nil, &ParseError{Path: path, Key: rawKey, Reason: err.Error()}
		}
		frame := make(Frame, len(items))
		for _, item := range items {
			label := NormalizeLabel(item.Label)
			if label == "" {
				return nil, &ParseError{Path: path, Key: rawKey, Reason: "entry without label"}
			}
			value, err := parseValue(item.Value)
			if err != nil {
				return nil, &ParseError{Path: path, Key: rawKey, Reason: fmt.Sprintf("label %q: %v", item.Label, err)}
			}
			frame[label] = value
		}
		src.entries[key] = frame
	}
	return src, nil
}

// Path returns the file the source was loaded from.
func (s *FileSource) Path() string { return s.path }

// Lookup implements Source.
func (s *FileSource) Lookup(frame int, camera string) Frame {
	if s == nil {
		return nil
	}
	return s.entries[Key{Frame: frame, Camera: camera}]
}

// Keys implements Source.
func (s *FileSource) Keys() []Key {
	if s == nil {
		return nil
	}
	return sortedKeys(s.entries)
}

// parseKey splits "<frame>_<camera>" at the first underscore; camera names
// themselves contain underscores.
func parseKey(raw string) (Key, error) {
	idx := strings.IndexByte(raw, '_')
	if idx <= 0 || idx == len(raw)-1 {
		return Key{}, fmt.Errorf("key must look like <frame>_<camera>")
	}
	frame, err := strconv.Atoi(raw[:idx])
	if err != nil || frame < 0 {
		return Key{}, fmt.Errorf("frame %q is not a non-negative integer", raw[:idx])
	}
	return Key{Frame: frame, Camera: raw[idx+1:]}, nil
}

func parseValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return None(), nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "none":
			return None(), nil
		case "out_of_frame":
			return OutOfFrame(), nil
		case "stop_tracking":
			return StopTracking(), nil
		case "skip":
			return Skip(), nil
		default:
			return Value{}, fmt.Errorf("unknown value %q", s)
		}
	}
	var coords []float64
	if err := json.Unmarshal(trimmed, &coords); err != nil {
		return Value{}, fmt.Errorf("box must be four numbers: %w", err)
	}
	if len(coords) != 4 {
		return Value{}, fmt.Errorf("box must be four numbers, got %d", len(coords))
	}
	return BoxValue(Box{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}), nil
}
