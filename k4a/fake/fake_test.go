package fake

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/rimage"
)

var testConfig = k4a.DeviceConfiguration{
	ColorResolution: k4a.ColorResolution720P,
	DepthMode:       k4a.DepthModeNFOVBinned,
	FPS:             30,
	ImuEnabled:      true,
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	dev := NewDevice("abc", Config{PlaneDepth: 1000})
	test.That(t, dev.SerialNumber(), test.ShouldEqual, "abc")

	_, err := dev.GetCapture(ctx, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, k4a.ErrCaptureFailed), test.ShouldBeTrue)

	test.That(t, dev.Start(ctx, testConfig), test.ShouldBeNil)
	test.That(t, dev.Start(ctx, testConfig), test.ShouldNotBeNil)
	test.That(t, dev.Starts(), test.ShouldEqual, 1)

	capture, err := dev.GetCapture(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, capture.Reference(), test.ShouldEqual, capture.Depth)

	dm, err := capture.Depth.DepthMap()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 320)
	test.That(t, dm.Height(), test.ShouldEqual, 288)
	test.That(t, dm.GetDepth(0, 10), test.ShouldEqual, rimage.Depth(0))
	test.That(t, dm.GetDepth(100, 10), test.ShouldEqual, rimage.Depth(1000))
	test.That(t, capture.Depth.SystemTimestamp, test.ShouldNotEqual, time.Duration(0))

	img, err := capture.Color.ColorImage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Width(), test.ShouldEqual, 1280)
	test.That(t, img.GetXY(0, 0).B, test.ShouldEqual, uint8(128))

	ir, err := capture.IR.IRImage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ir.Gray16At(3, 2).Y, test.ShouldEqual, uint16(20))

	next, err := dev.GetCapture(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next.Depth.DeviceTimestamp-capture.Depth.DeviceTimestamp, test.ShouldEqual, time.Second/30)

	dev.FailCaptures(1)
	_, err = dev.GetCapture(ctx, time.Second)
	test.That(t, errors.Is(err, k4a.ErrCaptureFailed), test.ShouldBeTrue)

	test.That(t, dev.Stop(ctx), test.ShouldBeNil)
	test.That(t, dev.Stops(), test.ShouldEqual, 1)
	test.That(t, dev.Close(ctx), test.ShouldBeNil)
	test.That(t, dev.Closed(), test.ShouldBeTrue)
	test.That(t, dev.Start(ctx, testConfig), test.ShouldNotBeNil)
}

func TestCaptureTimeout(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	dev := NewDevice("abc", Config{Clock: mock, Monotonic: func() time.Duration { return time.Duration(mock.Now().UnixNano()) }})
	test.That(t, dev.Start(ctx, testConfig), test.ShouldBeNil)

	_, err := dev.GetCapture(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)

	// the next frame is 33ms out and the mock clock never moves on its own
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = dev.GetCapture(cancelCtx, time.Millisecond)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestStallCaptures(t *testing.T) {
	ctx := context.Background()
	dev := NewDevice("abc", Config{})
	test.That(t, dev.Start(ctx, testConfig), test.ShouldBeNil)

	dev.StallCaptures(2)
	for i := 0; i < 2; i++ {
		_, err := dev.GetCapture(ctx, 10*time.Millisecond)
		test.That(t, errors.Is(err, k4a.ErrCaptureTimeout), test.ShouldBeTrue)
	}
	capture, err := dev.GetCapture(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, capture.Depth, test.ShouldNotBeNil)
}

func TestImu(t *testing.T) {
	ctx := context.Background()
	dev := NewDevice("abc", Config{})
	_, err := dev.GetImuSample(ctx, time.Second)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, dev.Start(ctx, testConfig), test.ShouldBeNil)
	first, err := dev.GetImuSample(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)
	second, err := dev.GetImuSample(ctx, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.AccTimestampUsec-first.AccTimestampUsec, test.ShouldEqual, uint64(ImuPeriod/time.Microsecond))
	test.That(t, first.Acceleration.Z, test.ShouldEqual, -9.81)
}

func TestCalibration(t *testing.T) {
	dev := NewDevice("abc", Config{})
	cal, err := dev.Calibration(context.Background(), testConfig)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.Depth.Width, test.ShouldEqual, 320)
	test.That(t, cal.Color.Width, test.ShouldEqual, 1280)
	test.That(t, cal.DepthToColor.Translation.X, test.ShouldEqual, -32.)

	depthOnly := testConfig
	depthOnly.ColorResolution = k4a.ColorResolutionOff
	cal, err = dev.Calibration(context.Background(), depthOnly)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.HasColor(), test.ShouldBeFalse)
}

func TestOpener(t *testing.T) {
	ctx := context.Background()
	opener := &Opener{}
	var seen string
	err := k4a.WithDevice(ctx, opener, "", func(dev k4a.Device) error {
		seen = dev.SerialNumber()
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, seen, test.ShouldEqual, DefaultSerial)
	test.That(t, opener.Opened()[0].Closed(), test.ShouldBeTrue)

	opener.Unavailable = true
	err = k4a.WithDevice(ctx, opener, "x", func(dev k4a.Device) error { return nil })
	test.That(t, errors.Is(err, k4a.ErrDeviceUnavailable), test.ShouldBeTrue)
}
