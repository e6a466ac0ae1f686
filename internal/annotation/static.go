package annotation

import "sort"

// Static is an in-memory Source.
type Static struct {
	entries map[Key]Frame
}

// NewStatic returns an empty Static source.
func NewStatic() *Static {
	return &Static{entries: make(map[Key]Frame)}
}

// Set records value for label at (frame, camera). Set is not safe to call
// concurrently with Lookup.
func (s *Static) Set(frame int, camera, label string, value Value) *Static {
	key := Key{Frame: frame, Camera: camera}
	entry, ok := s.entries[key]
	if !ok {
		entry = make(Frame)
		s.entries[key] = entry
	}
	entry[NormalizeLabel(label)] = value
	return s
}

// Lookup implements Source.
func (s *Static) Lookup(frame int, camera string) Frame {
	if s == nil {
		return nil
	}
	return s.entries[Key{Frame: frame, Camera: camera}]
}

// Keys implements Source. Keys are ordered by frame then camera.
func (s *Static) Keys() []Key {
	if s == nil {
		return nil
	}
	return sortedKeys(s.entries)
}

func sortedKeys(entries map[Key]Frame) []Key {
	keys := make([]Key, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Frame != keys[j].Frame {
			return keys[i].Frame < keys[j].Frame
		}
		return keys[i].Camera < keys[j].Camera
	})
	return keys
}
