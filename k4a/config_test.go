package k4a

import (
	"testing"

	"go.viam.com/test"
)

func TestDeviceConfigurationValidate(t *testing.T) {
	cfg := DeviceConfiguration{
		ColorResolution: ColorResolution1080P,
		DepthMode:       DepthModeNFOVUnbinned,
		FPS:             30,
	}
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	w, h, err := cfg.DepthMode.Size()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 640)
	test.That(t, h, test.ShouldEqual, 576)
	w, h, err = cfg.ColorResolution.Size()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 1920)
	test.That(t, h, test.ShouldEqual, 1080)

	bad := cfg
	bad.FPS = 25
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = cfg
	bad.DepthMode = DepthModeWFOVUnbinned
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad.FPS = 15
	test.That(t, bad.Validate(), test.ShouldBeNil)

	bad = cfg
	bad.DepthMode = "SIDEWAYS"
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	off := DeviceConfiguration{ColorResolution: ColorResolutionOff, DepthMode: DepthModeOff, FPS: 5}
	test.That(t, off.Validate(), test.ShouldNotBeNil)

	passive := DeviceConfiguration{DepthMode: DepthModePassiveIR, FPS: 30, SynchronizedImagesOnly: true}
	test.That(t, passive.DepthMode.DepthEnabled(), test.ShouldBeFalse)
	test.That(t, passive.Validate(), test.ShouldNotBeNil)
}

func TestRawImageDecode(t *testing.T) {
	var missing *RawImage
	_, err := missing.DepthMap()
	test.That(t, err, test.ShouldNotBeNil)

	img := &RawImage{Format: FormatIR16, Width: 1, Height: 1, Stride: 2, Buffer: []byte{1, 0}}
	_, err = img.DepthMap()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "IR16")

	img.Format = FormatDepth16
	dm, err := img.DepthMap()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, int(dm.GetDepth(0, 0)), test.ShouldEqual, 1)

	img.Buffer = nil
	_, err = img.DepthMap()
	test.That(t, err, test.ShouldNotBeNil)

	capture := &Capture{Color: &RawImage{Format: FormatBGRA32}}
	test.That(t, capture.Reference(), test.ShouldEqual, capture.Color)
}
