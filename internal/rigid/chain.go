package rigid

// The robot-frame chain. Callers pass the fiducial detection (tag points into
// camera), the fixed tag calibration (tag points into robot base), and the
// per-frame object pose (object points into camera).

// CamToRobot derives the camera-to-robot transform from the tag detection:
// camToRobot = Compose(Invert(tagToCam), tagToRobot).
func CamToRobot(tagToCam, tagToRobot Transform) (Transform, error) {
	camToTag, err := Invert(tagToCam)
	if err != nil {
		return Sentinel, err
	}
	return Compose(camToTag, tagToRobot)
}

// ObjectToRobot reprojects a camera-frame object pose into the robot frame:
// objToRobot = Compose(objToCam, camToRobot).
func ObjectToRobot(objToCam, camToRobot Transform) (Transform, error) {
	return Compose(objToCam, camToRobot)
}
