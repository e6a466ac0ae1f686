package artifact

import (
	"fmt"
	"strings"
)

// MissingArtifactError reports an expected file or stream that is absent.
type MissingArtifactError struct {
	Path   string
	Prompt string
	Frame  int
	Camera string
}

func (e *MissingArtifactError) Error() string {
	var context []string
	if e.Prompt != "" {
		context = append(context, fmt.Sprintf("prompt %q", e.Prompt))
	}
	if e.Frame >= 0 {
		context = append(context, fmt.Sprintf("frame %d", e.Frame))
	}
	if e.Camera != "" {
		context = append(context, "camera "+e.Camera)
	}
	if len(context) == 0 {
		return "missing artifact " + e.Path
	}
	return fmt.Sprintf("missing artifact %s (%s)", e.Path, strings.Join(context, ", "))
}

// ErrorKind classifies the error for the run ledger.
func (e *MissingArtifactError) ErrorKind() string { return "not_found" }

// InvalidMaskError reports a mask pixel outside {0, 255}.
type InvalidMaskError struct {
	Path  string
	X, Y  int
	Value uint8
}

func (e *InvalidMaskError) Error() string {
	return fmt.Sprintf("invalid mask %s: pixel (%d,%d) has value %d, want 0 or 255", e.Path, e.X, e.Y, e.Value)
}

// ErrorKind classifies the error for the run ledger.
func (e *InvalidMaskError) ErrorKind() string { return "validation" }

func missing(path, prompt string, frame int, camera string) error {
	return &MissingArtifactError{Path: path, Prompt: prompt, Frame: frame, Camera: camera}
}
