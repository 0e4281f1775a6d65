package transform

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func testModel(width, height int) *PinholeCameraModel {
	return &PinholeCameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width: width, Height: height,
			Fx: 504.2, Fy: 504.3, Ppx: 321.7, Ppy: 330.1,
		},
		Distortion: &RationalPolynomial{RadialK1: 0.5, RadialK2: -0.03, RadialK4: 0.83},
	}
}

func TestExtrinsicsInverse(t *testing.T) {
	c, s := math.Cos(0.1), math.Sin(0.1)
	ext, err := NewExtrinsics([]float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}, r3.Vector{X: -32, Y: -2, Z: 4})
	test.That(t, err, test.ShouldBeNil)

	p := r3.Vector{X: 100, Y: -250, Z: 1500}
	back := ext.Inverse().Transform(ext.Transform(p))
	test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-9)
	test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-9)

	_, err = NewExtrinsics([]float64{2, 0, 0, 0, 1, 0, 0, 0, 1}, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewExtrinsics([]float64{1, 0, 0}, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)

	id := IdentityExtrinsics()
	test.That(t, id.Transform(p), test.ShouldResemble, p)
	test.That(t, id.RotationSlice(), test.ShouldResemble, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func TestCalibrationCheckValid(t *testing.T) {
	var nilCal *Calibration
	test.That(t, nilCal.CheckValid(), test.ShouldNotBeNil)

	cal, err := NewCalibration(testModel(640, 576), testModel(1280, 720), IdentityExtrinsics())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.HasColor(), test.ShouldBeTrue)
	test.That(t, cal.ColorToDepth, test.ShouldNotBeNil)

	depthOnly, err := NewCalibration(testModel(640, 576), nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthOnly.HasColor(), test.ShouldBeFalse)

	_, err = NewCalibration(testModel(640, 576), testModel(1280, 720), nil)
	test.That(t, err, test.ShouldNotBeNil)

	bad := testModel(640, 576)
	bad.Fx = 0
	_, err = NewCalibration(bad, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid focal length")

	override := testModel(640, 576)
	override.Fx = 600
	overridden, err := cal.WithOverrides(override, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, overridden.Depth.Fx, test.ShouldEqual, 600.)
	test.That(t, cal.Depth.Fx, test.ShouldEqual, 504.2)

	_, err = depthOnly.WithOverrides(nil, testModel(1280, 720))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = cal.WithOverrides(testModel(320, 288), nil)
	test.That(t, errors.Is(err, ErrCalibrationMismatch), test.ShouldBeTrue)
}

func TestCameraInfoFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depth.yaml")
	model := testModel(640, 576)
	test.That(t, WriteCameraInfoFile(path, "depth_camera", model), test.ShouldBeNil)

	read, name, err := ReadCameraInfoFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "depth_camera")
	test.That(t, read.PinholeCameraIntrinsics, test.ShouldResemble, model.PinholeCameraIntrinsics)
	test.That(t, read.Distortion.ModelType(), test.ShouldEqual, RationalPolynomialDistortionType)
	test.That(t, read.Distortion.Parameters(), test.ShouldResemble, model.Distortion.Parameters())

	_, _, err = ReadCameraInfoFile(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestROSDistortionOrder(t *testing.T) {
	name, d := ROSDistortion(&BrownConrady{RadialK1: 1, RadialK2: 2, RadialK3: 3, TangentialP1: 4, TangentialP2: 5})
	test.That(t, name, test.ShouldEqual, ROSPlumbBob)
	test.That(t, d, test.ShouldResemble, []float64{1, 2, 4, 5, 3})

	name, d = ROSDistortion(nil)
	test.That(t, name, test.ShouldEqual, ROSPlumbBob)
	test.That(t, d, test.ShouldResemble, []float64{0, 0, 0, 0, 0})

	_, err := DistorterFromROS("equidistant", nil)
	test.That(t, err, test.ShouldNotBeNil)
}
