package rigid

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is a row-major 4x4 homogeneous matrix: m00,m01,m02,m03, m10,...
type Transform [16]float64

// Identity maps every frame onto itself.
var Identity = Transform{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// Sentinel is the all-zero matrix emitted for an absent object. It can never be
// confused with a valid transform, whose bottom-right element is always 1.
var Sentinel Transform

// OrthonormalTolerance bounds |RᵀR - I| and |det R - 1| when inverting.
const OrthonormalTolerance = 1e-6

// IsSentinel reports whether t is the all-zero absent marker.
func (t Transform) IsSentinel() bool {
	return t == Sentinel
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// Rotation returns the 3x3 rotation block row-major.
func (t Transform) Rotation() [9]float64 {
	return [9]float64{
		t[0], t[1], t[2],
		t[4], t[5], t[6],
		t[8], t[9], t[10],
	}
}

// At returns element (row, col).
func (t Transform) At(row, col int) float64 {
	return t[row*4+col]
}

// FromRotationTranslation assembles a transform from a row-major rotation block
// and a translation vector. The result is not validated.
func FromRotationTranslation(rot [9]float64, translation r3.Vector) Transform {
	return Transform{
		rot[0], rot[1], rot[2], translation.X,
		rot[3], rot[4], rot[5], translation.Y,
		rot[6], rot[7], rot[8], translation.Z,
		0, 0, 0, 1,
	}
}

// FromMatrix builds a transform from a rows x cols row-major slice, failing
// unless the input is exactly 4x4 and satisfies Validate.
func FromMatrix(rows, cols int, data []float64) (Transform, error) {
	if rows != 4 || cols != 4 {
		return Sentinel, malformed("", "expected 4x4 matrix, got %dx%d", rows, cols)
	}
	if len(data) != 16 {
		return Sentinel, malformed("", "expected 16 values, got %d", len(data))
	}
	var t Transform
	copy(t[:], data)
	if t.IsSentinel() {
		return t, nil
	}
	if err := Validate(t); err != nil {
		return Sentinel, err
	}
	return t, nil
}

// Validate checks the homogeneous contract: finite entries and a bottom row of
// exactly [0 0 0 1]. The sentinel does not validate; callers test IsSentinel
// first when absent poses are acceptable.
func Validate(t Transform) error {
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed("", "element (%d,%d) is not finite", i/4, i%4)
		}
	}
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || t[15] != 1 {
		return malformed("", "bottom row is [%g %g %g %g], want [0 0 0 1]", t[12], t[13], t[14], t[15])
	}
	return nil
}

// Compose chains aToB then bToC, returning aToC = bToC · aToB. A sentinel on
// either side yields the sentinel once the other side has validated.
func Compose(aToB, bToC Transform) (Transform, error) {
	for _, t := range [2]Transform{aToB, bToC} {
		if t.IsSentinel() {
			continue
		}
		if err := Validate(t); err != nil {
			return Sentinel, err
		}
	}
	if aToB.IsSentinel() || bToC.IsSentinel() {
		return Sentinel, nil
	}
	var out mat.Dense
	out.Mul(bToC.dense(), aToB.dense())
	return fromDense(&out), nil
}

// Invert returns bToA for a rigid aToB using [Rᵀ | -Rᵀt]. The rotation block
// must already be orthonormal with determinant 1.
func Invert(aToB Transform) (Transform, error) {
	if aToB.IsSentinel() {
		return Sentinel, nil
	}
	if err := Validate(aToB); err != nil {
		return Sentinel, err
	}
	rot := mat.NewDense(3, 3, sliceOf(aToB.Rotation()))
	if err := checkOrthonormal(rot); err != nil {
		return Sentinel, err
	}

	var rt mat.Dense
	rt.CloneFrom(rot.T())
	t := aToB.Translation()
	tv := mat.NewVecDense(3, []float64{t.X, t.Y, t.Z})
	var inv mat.VecDense
	inv.MulVec(&rt, tv)

	var rtRows [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rtRows[r*3+c] = rt.At(r, c)
		}
	}
	return FromRotationTranslation(rtRows, r3.Vector{X: -inv.AtVec(0), Y: -inv.AtVec(1), Z: -inv.AtVec(2)}), nil
}

// ApproxEqual reports whether all elements of a and b differ by at most tol.
func ApproxEqual(a, b Transform, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func checkOrthonormal(rot *mat.Dense) error {
	var gram mat.Dense
	gram.Mul(rot.T(), rot)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if math.Abs(gram.At(r, c)-want) > OrthonormalTolerance {
				return malformed("", "rotation block is not orthonormal")
			}
		}
	}
	if det := mat.Det(rot); math.Abs(det-1) > OrthonormalTolerance {
		return malformed("", "rotation determinant is %g, want 1", det)
	}
	return nil
}

func (t Transform) dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

func fromDense(m *mat.Dense) Transform {
	var t Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[r*4+c] = m.At(r, c)
		}
	}
	return t
}

func sliceOf(values [9]float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values[:])
	return out
}
