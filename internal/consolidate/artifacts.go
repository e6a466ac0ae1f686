package consolidate

import (
	"fmt"
	"os"

	"demoarchive/internal/artifact"
	"demoarchive/internal/fileutil"
	"demoarchive/internal/rigid"
)

// writeFrameArtifacts exports frame's poses and 3D boxes in the upstream
// tracker's output_<slug> text layout.
func writeFrameArtifacts(layout artifact.Layout, s *Series, frame int) error {
	dir := layout.OutputDir(s.Prompt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	files := []struct {
		path string
		text string
	}{
		{layout.CamPosePath(s.Prompt, frame), rigid.Format(s.CamPoses[frame])},
		{layout.RobotPosePath(s.Prompt, frame), rigid.Format(s.RobotPoses[frame])},
		{layout.BoxCamPath(s.Prompt, frame), rigid.FormatCorners(s.CamBoxes[frame])},
		{layout.BoxRobotPath(s.Prompt, frame), rigid.FormatCorners(s.RobotBoxes[frame])},
	}
	for _, f := range files {
		if err := fileutil.WriteFileAtomic(f.path, []byte(f.text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
	}
	return nil
}
