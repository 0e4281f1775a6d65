// Package k4a is the boundary to the depth camera SDK: the device handle, captures, IMU samples
// and the errors a device can report.
package k4a

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcam/rimage/transform"
)

var (
	// ErrDeviceUnavailable is returned when a device cannot be opened or started, or has stopped
	// responding. It is terminal.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrCaptureTimeout is returned when no data arrived within the requested timeout. It is
	// transient.
	ErrCaptureTimeout = errors.New("capture timed out")
	// ErrCaptureFailed is returned when the device reported an error reading a capture.
	ErrCaptureFailed = errors.New("capture failed")
)

// Device is an open depth camera.
type Device interface {
	// SerialNumber identifies the device.
	SerialNumber() string
	// Calibration returns the factory calibration for the given mode.
	Calibration(ctx context.Context, cfg DeviceConfiguration) (*transform.Calibration, error)
	// Start starts the cameras and, if requested, the IMU.
	Start(ctx context.Context, cfg DeviceConfiguration) error
	// GetCapture blocks for at most timeout waiting for the next capture. It returns
	// ErrCaptureTimeout when nothing arrived in time.
	GetCapture(ctx context.Context, timeout time.Duration) (*Capture, error)
	// GetImuSample blocks for at most timeout waiting for the next IMU sample.
	GetImuSample(ctx context.Context, timeout time.Duration) (*ImuSample, error)
	// Stop stops all streams. A stopped device may be started again.
	Stop(ctx context.Context) error
	// Close releases the device.
	Close(ctx context.Context) error
}

// Unavailable marks err as ErrDeviceUnavailable. errors.Is matches both the sentinel and err.
func Unavailable(err error, format string, args ...interface{}) error {
	return multierr.Combine(ErrDeviceUnavailable, errors.Wrapf(err, format, args...))
}

// An Opener finds and opens devices. An empty serial opens the first available device.
type Opener interface {
	Open(ctx context.Context, serial string) (Device, error)
}

// WithDevice opens a device, runs fn with it, and closes it afterwards whatever fn returns.
func WithDevice(ctx context.Context, opener Opener, serial string, fn func(Device) error) (err error) {
	dev, err := opener.Open(ctx, serial)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return Unavailable(err, "opening device %q", serial)
	}
	defer func() {
		err = multierr.Combine(err, dev.Close(ctx))
	}()
	return fn(dev)
}
