package transform

import (
	"github.com/pkg/errors"
)

// RationalPolynomial is the OpenCV rational lens model: six radial terms split across a
// numerator and denominator, plus two tangential terms.
type RationalPolynomial struct {
	RadialK1     float64 `json:"rk1" yaml:"rk1"`
	RadialK2     float64 `json:"rk2" yaml:"rk2"`
	RadialK3     float64 `json:"rk3" yaml:"rk3"`
	RadialK4     float64 `json:"rk4" yaml:"rk4"`
	RadialK5     float64 `json:"rk5" yaml:"rk5"`
	RadialK6     float64 `json:"rk6" yaml:"rk6"`
	TangentialP1 float64 `json:"tp1" yaml:"tp1"`
	TangentialP2 float64 `json:"tp2" yaml:"tp2"`
}

// NewRationalPolynomial reads parameters in the order [k1, k2, k3, k4, k5, k6, p1, p2]. Missing
// trailing values are zero.
func NewRationalPolynomial(inp []float64) (*RationalPolynomial, error) {
	if len(inp) > 8 {
		return nil, errors.Errorf("list of parameters too long, expected max 8, got %d", len(inp))
	}
	p := make([]float64, 8)
	copy(p, inp)
	return &RationalPolynomial{
		RadialK1: p[0], RadialK2: p[1], RadialK3: p[2],
		RadialK4: p[3], RadialK5: p[4], RadialK6: p[5],
		TangentialP1: p[6], TangentialP2: p[7],
	}, nil
}

// CheckValid checks if the fields for RationalPolynomial have valid inputs.
func (rp *RationalPolynomial) CheckValid() error {
	if rp == nil {
		return InvalidDistortionError("RationalPolynomial shaped distortion_parameters not provided")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (rp *RationalPolynomial) ModelType() DistortionType {
	return RationalPolynomialDistortionType
}

// Parameters returns the parameters as [k1, k2, k3, k4, k5, k6, p1, p2].
func (rp *RationalPolynomial) Parameters() []float64 {
	if rp == nil {
		return []float64{}
	}
	return []float64{
		rp.RadialK1, rp.RadialK2, rp.RadialK3,
		rp.RadialK4, rp.RadialK5, rp.RadialK6,
		rp.TangentialP1, rp.TangentialP2,
	}
}

// Transform distorts normalized coordinates.
func (rp *RationalPolynomial) Transform(x, y float64) (float64, float64) {
	if rp == nil {
		return x, y
	}
	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	num := 1. + rp.RadialK1*r2 + rp.RadialK2*r4 + rp.RadialK3*r6
	den := 1. + rp.RadialK4*r2 + rp.RadialK5*r4 + rp.RadialK6*r6
	if den == 0 {
		// the model is singular here; leave the point where it is
		return x, y
	}
	radDist := num / den
	tanDistX := 2.*rp.TangentialP1*x*y + rp.TangentialP2*(r2+2.*x*x)
	tanDistY := 2.*rp.TangentialP2*x*y + rp.TangentialP1*(r2+2.*y*y)
	return x*radDist + tanDistX, y*radDist + tanDistY
}
