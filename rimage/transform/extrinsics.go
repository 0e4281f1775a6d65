package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Extrinsics is a rigid transform between two sensor frames: p' = Rotation * p + Translation.
// Translation is in millimeters.
type Extrinsics struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewExtrinsics builds extrinsics from a row-major 3x3 rotation and a translation in mm.
func NewExtrinsics(rotation []float64, translation r3.Vector) (*Extrinsics, error) {
	if len(rotation) != 9 {
		return nil, errors.Errorf("rotation must have 9 entries, has %d", len(rotation))
	}
	rot := make([]float64, 9)
	copy(rot, rotation)
	ext := &Extrinsics{Rotation: mat.NewDense(3, 3, rot), Translation: translation}
	if err := ext.CheckValid(); err != nil {
		return nil, err
	}
	return ext, nil
}

// IdentityExtrinsics returns a transform that leaves points where they are.
func IdentityExtrinsics() *Extrinsics {
	return &Extrinsics{Rotation: eye(3)}
}

// CheckValid checks the rotation is a proper rotation matrix.
func (e *Extrinsics) CheckValid() error {
	if e == nil || e.Rotation == nil {
		return errors.New("extrinsics not provided")
	}
	if r, c := e.Rotation.Dims(); r != 3 || c != 3 {
		return errors.Errorf("rotation must be 3x3, is %dx%d", r, c)
	}
	var rrt mat.Dense
	rrt.Mul(e.Rotation, e.Rotation.T())
	if !mat.EqualApprox(&rrt, eye(3), 1e-6) {
		return errors.New("rotation is not orthonormal")
	}
	if det := mat.Det(e.Rotation); math.Abs(det-1) > 1e-6 {
		return errors.Errorf("rotation determinant is %v, expected 1", det)
	}
	return nil
}

// Transform moves a point from the source frame into the target frame.
func (e *Extrinsics) Transform(p r3.Vector) r3.Vector {
	r := e.Rotation
	return r3.Vector{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z + e.Translation.X,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z + e.Translation.Y,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z + e.Translation.Z,
	}
}

// Inverse returns the transform from the target frame back to the source frame.
func (e *Extrinsics) Inverse() *Extrinsics {
	rt := mat.DenseCopyOf(e.Rotation.T())
	t := mat.NewVecDense(3, []float64{e.Translation.X, e.Translation.Y, e.Translation.Z})
	var inv mat.VecDense
	inv.MulVec(rt, t)
	return &Extrinsics{
		Rotation:    rt,
		Translation: r3.Vector{X: -inv.AtVec(0), Y: -inv.AtVec(1), Z: -inv.AtVec(2)},
	}
}

// RotationSlice returns the rotation in row-major order.
func (e *Extrinsics) RotationSlice() []float64 {
	out := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out = append(out, e.Rotation.At(i, j))
		}
	}
	return out
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
