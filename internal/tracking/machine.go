package tracking

import (
	"fmt"

	"demoarchive/internal/annotation"
)

// Policy holds the per-run tracking knobs.
type Policy struct {
	// UseAllMasks registers with the mask on every tracked frame.
	UseAllMasks bool

	// RegisterFirstFrame registers at frame 0 even without a drawn box.
	RegisterFirstFrame bool
}

// Decision is the outcome of one Step.
type Decision struct {
	Frame  int
	Action Action
	From   State
	State  State
	// Box is the drawn box when the annotation carried one.
	Box    annotation.Box
	HasBox bool
	// Reason names the rule that matched.
	Reason string
}

// InvalidAnnotationError rejects an annotation the machine cannot honour.
// The machine state is unchanged.
type InvalidAnnotationError struct {
	Camera string
	Frame  int
	Kind   annotation.Kind
	Reason string
}

func (e *InvalidAnnotationError) Error() string {
	return fmt.Sprintf("invalid %s annotation at frame %d on camera %s: %s", e.Kind, e.Frame, e.Camera, e.Reason)
}

// ErrorKind classifies the error for the run ledger.
func (e *InvalidAnnotationError) ErrorKind() string { return "validation" }

// Machine is the state machine for one (prompt, camera).
type Machine struct {
	camera    string
	reference bool
	policy    Policy
	state     State
	frame     int
}

// NewMachine returns a machine in the Tracking state at frame 0.
func NewMachine(camera string, reference bool, policy Policy) *Machine {
	return &Machine{camera: camera, reference: reference, policy: policy, state: Tracking}
}

// Camera returns the camera the machine runs on.
func (m *Machine) Camera() string { return m.camera }

// Reference reports whether this is the reference camera.
func (m *Machine) Reference() bool { return m.reference }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Frame returns the index of the next frame Step will decide.
func (m *Machine) Frame() int { return m.frame }

// Step decides the current frame from its annotation and advances to the
// next frame. A rejected annotation returns *InvalidAnnotationError without
// advancing; the caller may retry the frame with another value.
func (m *Machine) Step(ann annotation.Value) (Decision, error) {
	d := Decision{Frame: m.frame, From: m.state}

	switch ann.Kind {
	case annotation.KindBox:
		m.state = Tracking
		d.Action, d.Box, d.HasBox, d.Reason = RegisterWithMask, ann.Box, true, "box"
	case annotation.KindStopTracking:
		if !m.reference {
			return Decision{}, &InvalidAnnotationError{
				Camera: m.camera,
				Frame:  m.frame,
				Kind:   ann.Kind,
				Reason: "stop_tracking is only accepted on the reference camera",
			}
		}
		m.state = StoppedTracking
		d.Action, d.Reason = Freeze, "stop_tracking"
	case annotation.KindOutOfFrame:
		m.state = OutOfFrame
		d.Action, d.Reason = EmitSentinel, "out_of_frame"
	default:
		d.Action, d.Reason = m.fromState()
	}

	d.State = m.state
	m.frame++
	return d, nil
}

func (m *Machine) fromState() (Action, string) {
	switch {
	case m.state == StoppedTracking:
		return ReuseFrozenPose, "stopped"
	case m.state == OutOfFrame:
		return EmitSentinel, "out_of_frame"
	case m.policy.UseAllMasks:
		return RegisterWithMask, "use_all_masks"
	case m.policy.RegisterFirstFrame && m.frame == 0:
		return RegisterWithMask, "first_frame"
	default:
		return TrackWithoutMask, "tracking"
	}
}

// MaskUnavailable reverses a RegisterWithMask decision for the last stepped
// frame when no drawn box exists and no usable mask was found: the machine
// moves to OutOfFrame and the frame emits the sentinel.
func (m *Machine) MaskUnavailable(d Decision) Decision {
	if d.Action != RegisterWithMask || d.HasBox {
		return d
	}
	m.state = OutOfFrame
	d.Action = EmitSentinel
	d.State = OutOfFrame
	d.Reason = "mask_unavailable"
	return d
}
