package consolidate

import (
	"image"

	"demoarchive/internal/tracking"
)

// newMachines returns one state machine per camera for a prompt.
func (c *Consolidator) newMachines(d *demo) []*tracking.Machine {
	policy := tracking.Policy{UseAllMasks: c.cfg.Tracking.UseAllMasks, RegisterFirstFrame: c.cfg.Tracking.RegisterFirstFrame}
	machines := make([]*tracking.Machine, len(d.layout.Cameras))
	for i, camera := range d.layout.Cameras {
		machines[i] = tracking.NewMachine(camera, i == d.refIndex, policy)
	}
	return machines
}

// box2D encodes one camera's 2D box. A stopped reference freezes every
// camera; otherwise each camera reports its own state, drawn box, or mask
// extent.
func box2D(ref, own tracking.Decision, mask *image.Gray) [4]float64 {
	switch {
	case ref.Action.EmitsFrozenPose():
		return StopTrackingBox
	case own.Action == tracking.EmitSentinel:
		return OutOfFrameBox
	case own.HasBox:
		return own.Box.Array()
	case mask != nil:
		return maskBox(mask)
	default:
		return AbsentBox()
	}
}
