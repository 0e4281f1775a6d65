package transform

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthcam/rimage"
)

func TestNewDistorter(t *testing.T) {
	d, err := NewDistorter(BrownConradyDistortionType, []float64{0.1, -0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.ModelType(), test.ShouldEqual, BrownConradyDistortionType)
	test.That(t, d.Parameters(), test.ShouldResemble, []float64{0.1, -0.2, 0, 0, 0})

	d, err = NewDistorter(RationalPolynomialDistortionType, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Parameters(), test.ShouldResemble, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	_, err = NewDistorter(BrownConradyDistortionType, make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDistorter("fisheye", nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUndistortPointRoundTrip(t *testing.T) {
	models := []Distorter{
		&BrownConrady{RadialK1: 0.11297234, RadialK2: -0.21375332, RadialK3: 0.19969297, TangentialP1: -0.01584774, TangentialP2: -0.00302002},
		&RationalPolynomial{
			RadialK1: 0.5, RadialK2: -0.03, RadialK3: -0.002,
			RadialK4: 0.83, RadialK5: 0.03, RadialK6: -0.01,
			TangentialP1: 0.0001, TangentialP2: -0.0002,
		},
	}
	for _, model := range models {
		t.Run(string(model.ModelType()), func(t *testing.T) {
			for _, pt := range [][2]float64{{0, 0}, {0.3, -0.2}, {-0.5, 0.4}, {0.1, 0.6}} {
				xd, yd := model.Transform(pt[0], pt[1])
				xu, yu, ok := UndistortPoint(model, xd, yd)
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, xu, test.ShouldAlmostEqual, pt[0], 1e-6)
				test.That(t, yu, test.ShouldAlmostEqual, pt[1], 1e-6)
			}
		})
	}

	x, y, ok := UndistortPoint(nil, 0.25, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, 0.5)
}

func TestUndistortDepthMap(t *testing.T) {
	model := &PinholeCameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{Width: 4, Height: 3, Fx: 2, Fy: 2, Ppx: 1.5, Ppy: 1},
	}
	dm := rimage.NewEmptyDepthMap(4, 3)
	dm.Set(2, 1, 1234)

	// no distortion model leaves the map untouched
	out, err := model.UndistortDepthMap(dm)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.GetDepth(2, 1), test.ShouldEqual, rimage.Depth(1234))
	test.That(t, out.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(0))

	_, err = model.UndistortDepthMap(rimage.NewEmptyDepthMap(3, 3))
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrCalibrationMismatch.Error())

	_, err = model.UndistortDepthMap(nil)
	test.That(t, err, test.ShouldNotBeNil)

	img := rimage.NewImage(4, 3)
	_, err = model.UndistortImage(img)
	test.That(t, err, test.ShouldBeNil)
}
