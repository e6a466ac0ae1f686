package estimator

import "fmt"

// TrackingFailedError wraps an estimator failure for one frame.
type TrackingFailedError struct {
	Op     string
	Prompt string
	Frame  int
	Camera string
	Err    error
}

func (e *TrackingFailedError) Error() string {
	return fmt.Sprintf("%s %q frame %d camera %s: %v", e.Op, e.Prompt, e.Frame, e.Camera, e.Err)
}

func (e *TrackingFailedError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for the run ledger.
func (e *TrackingFailedError) ErrorKind() string { return "external_tool" }

// FiducialNotFoundError reports that no tag was detected.
type FiducialNotFoundError struct {
	Camera    string
	ImagePath string
	Reason    string
}

func (e *FiducialNotFoundError) Error() string {
	msg := fmt.Sprintf("fiducial not found in %s (camera %s)", e.ImagePath, e.Camera)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ErrorKind classifies the error for the run ledger.
func (e *FiducialNotFoundError) ErrorKind() string { return "external_tool" }
