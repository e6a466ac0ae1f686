package tracking

// State is the tracking state of one object on one camera.
type State int

const (
	// Tracking follows the object from its previous pose.
	Tracking State = iota
	// StoppedTracking freezes the emitted pose at the last good pose.
	StoppedTracking
	// OutOfFrame emits the all-zero sentinel pose.
	OutOfFrame
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case StoppedTracking:
		return "stopped_tracking"
	case OutOfFrame:
		return "out_of_frame"
	default:
		return "unknown"
	}
}

// Action is what a frame requires of the consolidator.
type Action int

const (
	// TrackWithoutMask updates the pose incrementally from the previous frame.
	TrackWithoutMask Action = iota
	// RegisterWithMask (re-)initialises the pose from the frame's mask.
	RegisterWithMask
	// Freeze enters StoppedTracking; the frame emits the last good pose.
	Freeze
	// ReuseFrozenPose emits the frozen pose unchanged.
	ReuseFrozenPose
	// EmitSentinel emits the all-zero pose.
	EmitSentinel
)

func (a Action) String() string {
	switch a {
	case TrackWithoutMask:
		return "track_without_mask"
	case RegisterWithMask:
		return "register_with_mask"
	case Freeze:
		return "freeze"
	case ReuseFrozenPose:
		return "reuse_frozen_pose"
	case EmitSentinel:
		return "emit_sentinel"
	default:
		return "unknown"
	}
}

// NeedsEstimator reports whether the action calls the pose estimator.
func (a Action) NeedsEstimator() bool {
	return a == TrackWithoutMask || a == RegisterWithMask
}

// EmitsFrozenPose reports whether the action emits the last good pose.
func (a Action) EmitsFrozenPose() bool {
	return a == Freeze || a == ReuseFrozenPose
}
