package artifact

import (
	"fmt"
	"os"

	"demoarchive/internal/rigid"
)

// Intrinsics is a pinhole camera matrix.
type Intrinsics struct {
	Fx, Fy, Cx, Cy float64
	K              [9]float64
	Path           string
}

// IntrinsicsFromK unpacks a row-major 3x3 camera matrix.
func IntrinsicsFromK(k [9]float64) Intrinsics {
	return Intrinsics{Fx: k[0], Fy: k[4], Cx: k[2], Cy: k[5], K: k}
}

// Intrinsics reads cam_K_cam_<k>.txt, falling back to the shared cam_K.txt.
func (l *Loader) Intrinsics(camera string) (Intrinsics, error) {
	if l.layout.CameraIndex(camera) < 0 {
		return Intrinsics{}, fmt.Errorf("unknown camera %q", camera)
	}
	candidates := l.layout.IntrinsicsPaths(camera)
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Intrinsics{}, fmt.Errorf("read intrinsics %s: %w", path, err)
		}
		values, err := rigid.ParseValues(string(data), 9)
		if err != nil {
			return Intrinsics{}, rigid.WithSource(err, path)
		}
		var k [9]float64
		copy(k[:], values)
		in := IntrinsicsFromK(k)
		in.Path = path
		return in, nil
	}
	return Intrinsics{}, missing(candidates[len(candidates)-1], "", -1, camera)
}
