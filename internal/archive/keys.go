package archive

import (
	"fmt"
	"path"
	"strings"
)

// Group is an owned top-level archive group. Writes delete and recreate
// every owned group.
type Group int

const (
	GroupObjPoses Group = iota
	GroupObj3DBoxes
	GroupMasks
	Group2DBoxes
)

// OwnedGroups lists the groups a write replaces.
var OwnedGroups = []Group{GroupObjPoses, GroupObj3DBoxes, GroupMasks, Group2DBoxes}

func (g Group) String() string {
	switch g {
	case GroupObjPoses:
		return "obj_poses"
	case GroupObj3DBoxes:
		return "obj_3D_bboxes"
	case GroupMasks:
		return "masks"
	case Group2DBoxes:
		return "2D_bboxes"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Space is the coordinate frame of a pose or 3D box dataset.
type Space int

const (
	SpaceRobot Space = iota
	SpaceCam
)

func (s Space) String() string {
	if s == SpaceCam {
		return "cam_frame"
	}
	return "robot_frame"
}

// Spaces lists both frame spaces in archive order.
var Spaces = []Space{SpaceRobot, SpaceCam}

// PoseKey is obj_poses/<space>/<prompt>.
func PoseKey(space Space, prompt string) string {
	return path.Join(GroupObjPoses.String(), space.String(), prompt)
}

// Box3DKey is obj_3D_bboxes/<space>/<prompt>.
func Box3DKey(space Space, prompt string) string {
	return path.Join(GroupObj3DBoxes.String(), space.String(), prompt)
}

// MaskKey is masks/<camera>/<prompt>.
func MaskKey(camera, prompt string) string {
	return path.Join(GroupMasks.String(), camera, prompt)
}

// Box2DKey is 2D_bboxes/<camera>/<prompt>.
func Box2DKey(camera, prompt string) string {
	return path.Join(Group2DBoxes.String(), camera, prompt)
}

// LegacyPrefixes are the flat dataset name prefixes older tooling wrote at
// the archive root, one dataset per prompt.
var LegacyPrefixes = []string{
	"robot_poses_",
	"cam_poses_",
	"pose_robot_frame_",
	"pose_cam_frame_",
	"bbox_3D_cam_frame_",
	"bbox_3D_robot_frame_",
}

// IsLegacyKey reports whether key is a flat legacy dataset.
func IsLegacyKey(key string) bool {
	if strings.Contains(key, "/") {
		return false
	}
	for _, prefix := range LegacyPrefixes {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return true
		}
	}
	return false
}

func validateSegment(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty %s", kind)
	}
	if strings.Contains(value, "/") {
		return fmt.Errorf("%s %q contains '/'", kind, value)
	}
	return nil
}

func parentOf(key string) string {
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		return key[:idx]
	}
	return ""
}
