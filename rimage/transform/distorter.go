package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// RationalPolynomialDistortionType is the 8 coefficient model the depth camera reports for both sensors.
	RationalPolynomialDistortionType = DistortionType("rational_polynomial")
)

// Distorter defines a Transform that takes an undistorted image and distorts it according to the model.
// Coordinates are normalized image coordinates, i.e. (u - ppx) / fx.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case RationalPolynomialDistortionType:
		return NewRationalPolynomial(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// UndistortPoint inverts a Distorter: given distorted normalized coordinates it finds the
// undistorted coordinates that the model maps onto them. It uses Newton-Raphson iterations with a
// numerically estimated Jacobian, so it works for any model. The final return is false when the
// iteration did not converge, which happens far outside the lens' field of view.
func UndistortPoint(d Distorter, xd, yd float64) (float64, float64, bool) {
	if d == nil {
		return xd, yd, true
	}

	const (
		maxIterations = 20
		tolerance     = 1e-10
		step          = 1e-7
	)

	// Start with the distorted point as initial guess
	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		xEst, yEst := d.Transform(xu, yu)
		errX, errY := xEst-xd, yEst-yd
		if errX*errX+errY*errY < tolerance*tolerance {
			return xu, yu, true
		}

		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]]
		xdx, ydx := d.Transform(xu+step, yu)
		xdy, ydy := d.Transform(xu, yu+step)
		j00, j10 := (xdx-xEst)/step, (ydx-yEst)/step
		j01, j11 := (xdy-xEst)/step, (ydy-yEst)/step

		det := j00*j11 - j01*j10
		if det == 0 {
			return xu, yu, false
		}
		xu -= (j11*errX - j01*errY) / det
		yu -= (-j10*errX + j00*errY) / det
	}

	xEst, yEst := d.Transform(xu, yu)
	errX, errY := xEst-xd, yEst-yd
	// accept a slightly looser fit on the last step; anything worse is a diverged estimate
	return xu, yu, errX*errX+errY*errY < 1e-12
}
