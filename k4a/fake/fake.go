// Package fake implements a synthetic k4a device for tests and demos.
package fake

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/rimage/transform"
	"go.viam.com/depthcam/timesync"
)

// DefaultSerial is used when the opener is asked for any device.
const DefaultSerial = "000000000001"

// Config tunes the synthetic device.
type Config struct {
	Clock clock.Clock
	// Monotonic stamps arrivals; it must be the same clock the synchronizer reads.
	Monotonic func() time.Duration
	// DriftPPM makes the device clock run fast (positive) or slow.
	DriftPPM float64
	// PlaneDepth is the distance of the synthetic wall in millimeters.
	PlaneDepth uint16
	// NoSystemTimestamps leaves SystemTimestamp zero on every image.
	NoSystemTimestamps bool
}

// Device is a synthetic camera looking at a flat wall. The two leftmost columns of every depth
// image have no measurement.
type Device struct {
	serial string
	conf   Config

	mu        sync.Mutex
	cfg       k4a.DeviceConfiguration
	started   bool
	closed    bool
	startedAt time.Time
	nextFrame time.Time
	nextImu   time.Time
	failNext  int
	stallNext int
	starts    int
	stops     int
}

// NewDevice returns a synthetic device with its streams stopped.
func NewDevice(serial string, conf Config) *Device {
	if conf.Clock == nil {
		conf.Clock = clock.New()
	}
	if conf.Monotonic == nil {
		conf.Monotonic = timesync.Monotonic
	}
	if conf.PlaneDepth == 0 {
		conf.PlaneDepth = 1500
	}
	return &Device{serial: serial, conf: conf}
}

// SerialNumber implements k4a.Device.
func (d *Device) SerialNumber() string {
	return d.serial
}

// Calibration returns a plausible calibration for the mode: a small rational polynomial lens on
// the depth camera, brown conrady on the color camera, 32mm baseline.
func (d *Device) Calibration(ctx context.Context, cfg k4a.DeviceConfiguration) (*transform.Calibration, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var depth, color *transform.PinholeCameraModel
	w, h, _ := cfg.DepthMode.Size()
	if w == 0 {
		// the depth camera is calibrated even when off
		w, h = 640, 576
	}
	depth = &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: intrinsics(w, h, 0.79),
		Distortion:              &transform.RationalPolynomial{RadialK1: 0.12, RadialK2: -0.01, RadialK4: 0.09},
	}
	var depthToColor *transform.Extrinsics
	if cfg.ColorResolution.Enabled() {
		cw, ch, _ := cfg.ColorResolution.Size()
		color = &transform.PinholeCameraModel{
			PinholeCameraIntrinsics: intrinsics(cw, ch, 0.47),
			Distortion:              &transform.BrownConrady{RadialK1: 0.07, RadialK2: -0.05, TangentialP1: 0.0005},
		}
		depthToColor = transform.IdentityExtrinsics()
		depthToColor.Translation = r3.Vector{X: -32, Y: -2, Z: 4}
	}
	return transform.NewCalibration(depth, color, depthToColor)
}

func intrinsics(w, h int, focalScale float64) *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  w,
		Height: h,
		Fx:     focalScale * float64(w),
		Fy:     focalScale * float64(w),
		Ppx:    float64(w)/2 - 0.5,
		Ppy:    float64(h)/2 - 0.5,
	}
}

// Start implements k4a.Device.
func (d *Device) Start(ctx context.Context, cfg k4a.DeviceConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.Wrap(k4a.ErrDeviceUnavailable, "device closed")
	}
	if d.started {
		return errors.New("already started")
	}
	d.cfg = cfg
	d.started = true
	d.starts++
	d.startedAt = d.conf.Clock.Now()
	d.nextFrame = d.startedAt
	d.nextImu = d.startedAt
	return nil
}

// Stop implements k4a.Device.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		d.stops++
	}
	d.started = false
	return nil
}

// Close implements k4a.Device.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.closed = true
	return nil
}

// FailCaptures makes the next n captures fail with k4a.ErrCaptureFailed.
func (d *Device) FailCaptures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

// StallCaptures makes the next n captures deliver nothing and time out.
func (d *Device) StallCaptures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stallNext = n
}

// Starts returns how many times the streams were started.
func (d *Device) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// Stops returns how many times running streams were stopped.
func (d *Device) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Configuration returns the configuration the streams were last started with.
func (d *Device) Configuration() k4a.DeviceConfiguration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// deviceTime is the device clock reading at host time now.
func (d *Device) deviceTime(now time.Time) time.Duration {
	elapsed := now.Sub(d.startedAt)
	return elapsed + time.Duration(float64(elapsed)*d.conf.DriftPPM/1e6)
}

// wait blocks until host time at, or for at most timeout. It reports whether at was reached.
func (d *Device) wait(ctx context.Context, at time.Time, timeout time.Duration) (bool, error) {
	wait := at.Sub(d.conf.Clock.Now())
	if wait <= 0 {
		return true, nil
	}
	reached := true
	if wait > timeout {
		wait = timeout
		reached = false
	}
	timer := d.conf.Clock.Timer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return reached, nil
	}
}

// GetCapture implements k4a.Device. Captures are paced at the configured frame rate.
func (d *Device) GetCapture(ctx context.Context, timeout time.Duration) (*k4a.Capture, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil, errors.Wrap(k4a.ErrCaptureFailed, "streams not started")
	}
	if d.failNext > 0 {
		d.failNext--
		d.mu.Unlock()
		return nil, errors.Wrap(k4a.ErrCaptureFailed, "injected failure")
	}
	if d.stallNext > 0 {
		d.stallNext--
		d.mu.Unlock()
		timer := d.conf.Clock.Timer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, k4a.ErrCaptureTimeout
		}
	}
	at := d.nextFrame
	cfg := d.cfg
	d.mu.Unlock()

	reached, err := d.wait(ctx, at, timeout)
	if err != nil {
		return nil, err
	}
	if !reached {
		return nil, k4a.ErrCaptureTimeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, errors.Wrap(k4a.ErrCaptureFailed, "streams stopped")
	}
	d.nextFrame = at.Add(time.Second / time.Duration(cfg.FPS))
	device := d.deviceTime(at)
	var system time.Duration
	if !d.conf.NoSystemTimestamps {
		system = d.conf.Monotonic()
	}

	capture := &k4a.Capture{}
	if cfg.DepthMode.Enabled() {
		w, h, _ := cfg.DepthMode.Size()
		if cfg.DepthMode.DepthEnabled() {
			capture.Depth = d.depthImage(w, h, device, system)
		}
		capture.IR = d.irImage(w, h, device, system)
	}
	if cfg.ColorResolution.Enabled() {
		w, h, _ := cfg.ColorResolution.Size()
		capture.Color = colorImage(w, h, device, system)
	}
	return capture, nil
}

func (d *Device) depthImage(w, h int, device, system time.Duration) *k4a.RawImage {
	buf := make([]byte, 2*w*h)
	for y := 0; y < h; y++ {
		for x := 2; x < w; x++ {
			binary.LittleEndian.PutUint16(buf[2*(y*w+x):], d.conf.PlaneDepth)
		}
	}
	return &k4a.RawImage{
		Format: k4a.FormatDepth16, Width: w, Height: h, Stride: 2 * w, Buffer: buf,
		DeviceTimestamp: device, SystemTimestamp: system,
	}
}

func (d *Device) irImage(w, h int, device, system time.Duration) *k4a.RawImage {
	buf := make([]byte, 2*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint16(buf[2*(y*w+x):], uint16(4*(x+y)))
		}
	}
	return &k4a.RawImage{
		Format: k4a.FormatIR16, Width: w, Height: h, Stride: 2 * w, Buffer: buf,
		DeviceTimestamp: device, SystemTimestamp: system,
	}
}

func colorImage(w, h int, device, system time.Duration) *k4a.RawImage {
	buf := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := buf[4*(y*w+x):]
			px[0] = 128
			px[1] = uint8(255 * y / h)
			px[2] = uint8(255 * x / w)
			px[3] = 255
		}
	}
	return &k4a.RawImage{
		Format: k4a.FormatBGRA32, Width: w, Height: h, Stride: 4 * w, Buffer: buf,
		DeviceTimestamp: device, SystemTimestamp: system,
	}
}

// ImuPeriod is the interval between synthetic IMU samples.
const ImuPeriod = 5 * time.Millisecond

// GetImuSample implements k4a.Device. The device is at rest, level, at 31 degrees Celsius.
func (d *Device) GetImuSample(ctx context.Context, timeout time.Duration) (*k4a.ImuSample, error) {
	d.mu.Lock()
	if !d.started || !d.cfg.ImuEnabled {
		d.mu.Unlock()
		return nil, errors.Wrap(k4a.ErrCaptureFailed, "imu not started")
	}
	at := d.nextImu
	d.mu.Unlock()

	reached, err := d.wait(ctx, at, timeout)
	if err != nil {
		return nil, err
	}
	if !reached {
		return nil, k4a.ErrCaptureTimeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextImu = at.Add(ImuPeriod)
	usec := uint64(d.deviceTime(at) / time.Microsecond)
	return &k4a.ImuSample{
		Temperature:       31,
		Acceleration:      r3.Vector{Z: -9.81},
		AccTimestampUsec:  usec,
		GyroTimestampUsec: usec,
	}, nil
}

// Opener opens synthetic devices.
type Opener struct {
	Config Config
	// Unavailable makes every Open fail.
	Unavailable bool

	mu     sync.Mutex
	opened []*Device
}

// Open implements k4a.Opener.
func (o *Opener) Open(ctx context.Context, serial string) (k4a.Device, error) {
	if o.Unavailable {
		return nil, errors.Wrapf(k4a.ErrDeviceUnavailable, "no device with serial %q", serial)
	}
	if serial == "" {
		serial = DefaultSerial
	}
	dev := NewDevice(serial, o.Config)
	o.mu.Lock()
	o.opened = append(o.opened, dev)
	o.mu.Unlock()
	return dev, nil
}

// Opened returns the devices opened so far.
func (o *Opener) Opened() []*Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Device(nil), o.opened...)
}
