package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Stream names a per-camera image sequence.
type Stream int

const (
	// StreamRGB is rgb_cam_<k>.
	StreamRGB Stream = iota
	// StreamDepth is depth_cam_<k>.
	StreamDepth
)

func (s Stream) String() string {
	if s == StreamDepth {
		return "depth"
	}
	return "rgb"
}

// Layout maps demonstration coordinates onto file paths. Camera k in the
// directory names is the index of the camera in Cameras.
type Layout struct {
	Root        string
	Cameras     []string
	FrameDigits int
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string, cameras []string, frameDigits int) Layout {
	if frameDigits <= 0 {
		frameDigits = 4
	}
	return Layout{Root: root, Cameras: append([]string(nil), cameras...), FrameDigits: frameDigits}
}

// Slug converts a prompt into its directory form ("red block" -> "red_block").
func Slug(prompt string) string {
	return strings.ReplaceAll(strings.TrimSpace(prompt), " ", "_")
}

// Name returns the demonstration directory name.
func (l Layout) Name() string {
	return filepath.Base(l.Root)
}

// CameraIndex returns the directory index of camera, or -1.
func (l Layout) CameraIndex(camera string) int {
	for i, name := range l.Cameras {
		if name == camera {
			return i
		}
	}
	return -1
}

// FrameName renders a zero-padded frame index.
func (l Layout) FrameName(frame int) string {
	return fmt.Sprintf("%0*d", l.FrameDigits, frame)
}

// StreamDir returns rgb_cam_<k> or depth_cam_<k>.
func (l Layout) StreamDir(stream Stream, camera string) string {
	return filepath.Join(l.Root, fmt.Sprintf("%s_cam_%d", stream, l.CameraIndex(camera)))
}

// StreamFrame returns the image for camera at frame.
func (l Layout) StreamFrame(stream Stream, camera string, frame int) string {
	return filepath.Join(l.StreamDir(stream, camera), l.FrameName(frame)+".png")
}

// MaskDir returns masks_cam_<k>/<slug>.
func (l Layout) MaskDir(prompt, camera string) string {
	return filepath.Join(l.Root, fmt.Sprintf("masks_cam_%d", l.CameraIndex(camera)), Slug(prompt))
}

// MaskPath returns the mask for prompt on camera at frame.
func (l Layout) MaskPath(prompt, camera string, frame int) string {
	return filepath.Join(l.MaskDir(prompt, camera), l.FrameName(frame)+".png")
}

// OutputDir returns output_<slug>.
func (l Layout) OutputDir(prompt string) string {
	return filepath.Join(l.Root, "output_"+Slug(prompt))
}

// CamPosePath is the camera-frame pose written by the tracker.
func (l Layout) CamPosePath(prompt string, frame int) string {
	return filepath.Join(l.OutputDir(prompt), l.FrameName(frame)+".txt")
}

// RobotPosePath is the robot-frame pose.
func (l Layout) RobotPosePath(prompt string, frame int) string {
	return filepath.Join(l.OutputDir(prompt), l.FrameName(frame)+"_robot2block.txt")
}

// BoxCamPath is the camera-frame 3D box corners.
func (l Layout) BoxCamPath(prompt string, frame int) string {
	return filepath.Join(l.OutputDir(prompt), l.FrameName(frame)+"_3d_bbox_cam_frame.txt")
}

// BoxRobotPath is the robot-frame 3D box corners.
func (l Layout) BoxRobotPath(prompt string, frame int) string {
	return filepath.Join(l.OutputDir(prompt), l.FrameName(frame)+"_3d_bbox_robot_frame.txt")
}

// ObjectBoundsPath is the object-frame bounding corners exported with the mesh.
func (l Layout) ObjectBoundsPath(prompt string) string {
	return filepath.Join(l.Root, "mesh", Slug(prompt)+"_bbox.txt")
}

// IntrinsicsPaths lists the intrinsics candidates for camera in lookup order.
func (l Layout) IntrinsicsPaths(camera string) []string {
	return []string{
		filepath.Join(l.Root, fmt.Sprintf("cam_K_cam_%d.txt", l.CameraIndex(camera))),
		filepath.Join(l.Root, "cam_K.txt"),
	}
}

// AnnotationsPath is the manual annotation mapping.
func (l Layout) AnnotationsPath() string {
	return filepath.Join(l.Root, "annotations.json")
}

// CountFrames returns the number of RGB frames of camera.
func (l Layout) CountFrames(camera string) (int, error) {
	return l.CountStream(StreamRGB, camera)
}

// CountStream counts stream frames of camera. Frames must be contiguous from
// zero; the first gap fails with MissingArtifactError for the absent file.
func (l Layout) CountStream(stream Stream, camera string) (int, error) {
	if l.CameraIndex(camera) < 0 {
		return 0, fmt.Errorf("unknown camera %q", camera)
	}
	dir := l.StreamDir(stream, camera)
	n, gap, err := l.countIndexed(dir, ".png")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, missing(dir, "", -1, camera)
		}
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	if gap >= 0 {
		return 0, missing(l.StreamFrame(stream, camera, gap), "", gap, camera)
	}
	return n, nil
}

// CountOutputFrames counts the camera-frame pose files in output_<slug>.
func (l Layout) CountOutputFrames(prompt string) (int, error) {
	dir := l.OutputDir(prompt)
	n, gap, err := l.countIndexed(dir, ".txt")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, missing(dir, prompt, -1, "")
		}
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	if gap >= 0 {
		return 0, missing(l.CamPosePath(prompt, gap), prompt, gap, "")
	}
	return n, nil
}

// countIndexed returns how many "<FrameName(i)><ext>" files dir holds and the first
// missing index in [0, n), or -1 when the sequence is contiguous.
func (l Layout) countIndexed(dir, ext string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, -1, err
	}
	seen := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if len(stem) < l.FrameDigits {
			continue
		}
		idx, err := strconv.Atoi(stem)
		// Indices past the padding width grow extra digits (10000.png);
		// the round trip rejects signs and over-padded names.
		if err != nil || idx < 0 || l.FrameName(idx) != stem {
			continue
		}
		seen[idx] = struct{}{}
	}
	n := len(seen)
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			return n, i, nil
		}
	}
	return n, -1, nil
}

// DiscoverPrompts lists prompts that have a mask directory on camera or an
// output directory. Slugs are converted back to space-separated prompts and
// returned sorted.
func (l Layout) DiscoverPrompts(camera string) ([]string, error) {
	found := map[string]struct{}{}

	maskRoot := filepath.Dir(l.MaskDir("x", camera))
	entries, err := os.ReadDir(maskRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list %s: %w", maskRoot, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			found[entry.Name()] = struct{}{}
		}
	}

	rootEntries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.Root, err)
	}
	for _, entry := range rootEntries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "output_") && len(entry.Name()) > len("output_") {
			found[strings.TrimPrefix(entry.Name(), "output_")] = struct{}{}
		}
	}

	prompts := make([]string, 0, len(found))
	for slug := range found {
		prompts = append(prompts, strings.ReplaceAll(slug, "_", " "))
	}
	sort.Strings(prompts)
	return prompts, nil
}
