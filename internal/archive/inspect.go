package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Report is the content summary of one archive.
type Report struct {
	Path     string
	Meta     map[string]string
	Datasets []Info
}

// Issue is one verification finding.
type Issue struct {
	Path   string
	Reason string
}

func (i Issue) String() string { return i.Path + ": " + i.Reason }

// Inspect lists the datasets and meta of the archive at path.
func Inspect(ctx context.Context, path string) (*Report, error) {
	store, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	meta, err := store.Meta(ctx)
	if err != nil {
		return nil, err
	}
	datasets, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Report{Path: path, Meta: meta, Datasets: datasets}, nil
}

// Verify checks the report against the archive layout: every owned dataset
// has leading dimension n_frames and the expected trailing shape, every
// prompt has its pose and box datasets, and no legacy keys remain.
func (r *Report) Verify() []Issue {
	var issues []Issue
	n, err := strconv.Atoi(r.Meta["n_frames"])
	if err != nil {
		return []Issue{{Path: "meta/n_frames", Reason: fmt.Sprintf("missing or invalid: %q", r.Meta["n_frames"])}}
	}

	present := make(map[string]Info, len(r.Datasets))
	for _, info := range r.Datasets {
		present[info.Path] = info
		if IsLegacyKey(info.Path) {
			issues = append(issues, Issue{Path: info.Path, Reason: "legacy flat dataset"})
			continue
		}
		group, _, _ := strings.Cut(info.Path, "/")
		trailing, owned := expectedTrailing(group)
		if !owned {
			continue
		}
		if len(info.Shape) == 0 || info.Shape[0] != n {
			issues = append(issues, Issue{Path: info.Path, Reason: fmt.Sprintf("leading dimension %v, want %d", info.Shape, n)})
			continue
		}
		if trailing != nil && !slices.Equal(info.Shape[1:], trailing) {
			issues = append(issues, Issue{Path: info.Path, Reason: fmt.Sprintf("shape %v, want [%d %v]", info.Shape, n, trailing)})
		}
	}

	for _, prompt := range decodeList(r.Meta["prompts"]) {
		for _, space := range Spaces {
			for _, key := range []string{PoseKey(space, prompt), Box3DKey(space, prompt)} {
				if _, ok := present[key]; !ok {
					issues = append(issues, Issue{Path: key, Reason: "missing"})
				}
			}
		}
		for _, camera := range decodeList(r.Meta["cameras"]) {
			if key := Box2DKey(camera, prompt); present[key].Path == "" {
				issues = append(issues, Issue{Path: key, Reason: "missing"})
			}
		}
	}
	return issues
}

// StoredBytes sums the compressed payload sizes.
func (r *Report) StoredBytes() int64 {
	var total int64
	for _, info := range r.Datasets {
		total += info.StoredBytes
	}
	return total
}

func expectedTrailing(group string) ([]int, bool) {
	switch group {
	case GroupObjPoses.String():
		return []int{4, 4}, true
	case GroupObj3DBoxes.String():
		return []int{2, 4}, true
	case Group2DBoxes.String():
		return []int{4}, true
	case GroupMasks.String():
		return nil, true
	default:
		return nil, false
	}
}

func decodeList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
