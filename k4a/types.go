package k4a

import (
	"image"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/rimage"
)

// ImageFormat is the pixel layout of a RawImage.
type ImageFormat int

// The formats the driver reads.
const (
	FormatUnknown ImageFormat = iota
	FormatDepth16
	FormatIR16
	FormatBGRA32
)

func (f ImageFormat) String() string {
	switch f {
	case FormatDepth16:
		return "DEPTH16"
	case FormatIR16:
		return "IR16"
	case FormatBGRA32:
		return "BGRA32"
	case FormatUnknown:
	}
	return "UNKNOWN"
}

// RawImage is one image as delivered by the device.
type RawImage struct {
	Format ImageFormat
	Width  int
	Height int
	Stride int
	Buffer []byte
	// DeviceTimestamp is the exposure time on the device clock.
	DeviceTimestamp time.Duration
	// SystemTimestamp is the host monotonic time the data arrived at, zero when the host did
	// not record it.
	SystemTimestamp time.Duration
}

func (img *RawImage) check(want ImageFormat) error {
	if img == nil {
		return errors.Errorf("missing %s image", want)
	}
	if img.Format != want {
		return errors.Errorf("expected %s image, got %s", want, img.Format)
	}
	if len(img.Buffer) == 0 {
		return errors.Errorf("empty %s image", want)
	}
	return nil
}

// DepthMap decodes a DEPTH16 image.
func (img *RawImage) DepthMap() (*rimage.DepthMap, error) {
	if err := img.check(FormatDepth16); err != nil {
		return nil, err
	}
	return rimage.DepthMapFromDepth16(img.Buffer, img.Width, img.Height, img.Stride)
}

// ColorImage decodes a BGRA32 image.
func (img *RawImage) ColorImage() (*rimage.Image, error) {
	if err := img.check(FormatBGRA32); err != nil {
		return nil, err
	}
	return rimage.ImageFromBGRA32(img.Buffer, img.Width, img.Height, img.Stride)
}

// IRImage decodes an IR16 image.
func (img *RawImage) IRImage() (*image.Gray16, error) {
	if err := img.check(FormatIR16); err != nil {
		return nil, err
	}
	return rimage.IRFromIR16(img.Buffer, img.Width, img.Height, img.Stride)
}

// Capture is a set of images taken at roughly the same time. Any of them may be missing.
type Capture struct {
	Color *RawImage
	Depth *RawImage
	IR    *RawImage
}

// Reference returns the image whose timestamp stands for the whole capture: depth if present,
// then IR, then color.
func (c *Capture) Reference() *RawImage {
	switch {
	case c.Depth != nil:
		return c.Depth
	case c.IR != nil:
		return c.IR
	default:
		return c.Color
	}
}

// ImuSample is one accelerometer and gyroscope reading. Timestamps are device microseconds.
type ImuSample struct {
	Temperature       float64
	Acceleration      r3.Vector
	AccTimestampUsec  uint64
	AngularVelocity   r3.Vector
	GyroTimestampUsec uint64
}
