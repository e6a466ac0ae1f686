package rigid

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is a homogeneous row vector [x y z w].
type Point [4]float64

// Corners holds the min and max bounding corners of an object as two
// homogeneous row points, the 2x4 block archived for 3D boxes.
type Corners [2]Point

// CornersFromExtents returns the centered box [-e/2, e/2] in the object frame.
func CornersFromExtents(x, y, z float64) Corners {
	return Corners{
		{-x / 2, -y / 2, -z / 2, 1},
		{x / 2, y / 2, z / 2, 1},
	}
}

// Flat returns the corners row-major.
func (c Corners) Flat() [8]float64 {
	return [8]float64{
		c[0][0], c[0][1], c[0][2], c[0][3],
		c[1][0], c[1][1], c[1][2], c[1][3],
	}
}

// Apply maps homogeneous row points through t: p' = t · p for each row. The
// sentinel maps every point to the zero row. Points must be finite.
func Apply(t Transform, points []Point) ([]Point, error) {
	if !t.IsSentinel() {
		if err := Validate(t); err != nil {
			return nil, err
		}
	}
	for i, p := range points {
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, malformed("", "point %d is not finite", i)
			}
		}
	}
	out := make([]Point, len(points))
	if t.IsSentinel() || len(points) == 0 {
		return out, nil
	}
	data := make([]float64, 0, len(points)*4)
	for _, p := range points {
		data = append(data, p[:]...)
	}
	rows := mat.NewDense(len(points), 4, data)
	var mapped mat.Dense
	mapped.Mul(rows, t.dense().T())
	for i := range out {
		for c := 0; c < 4; c++ {
			out[i][c] = mapped.At(i, c)
		}
	}
	return out, nil
}

// ApplyCorners maps both bounding corners through t.
func ApplyCorners(t Transform, c Corners) (Corners, error) {
	mapped, err := Apply(t, c[:])
	if err != nil {
		return Corners{}, err
	}
	return Corners{mapped[0], mapped[1]}, nil
}
