// Package projection turns raw device images into ROS images and point clouds using the
// camera calibration.
package projection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/rimage/transform"
)

var (
	// ErrCalibrationMismatch is returned when an image does not have the resolution of its
	// calibration.
	ErrCalibrationMismatch = transform.ErrCalibrationMismatch
	// ErrInvalidImage is returned for missing, empty, truncated or wrongly formatted images.
	ErrInvalidImage = errors.New("invalid image")
)

// Sensor selects one of the calibrated cameras.
type Sensor int

// The calibrated cameras.
const (
	SensorDepth Sensor = iota
	SensorColor
)

func (s Sensor) String() string {
	if s == SensorColor {
		return "color"
	}
	return "depth"
}

// Projector converts images of one device. It is immutable after New and safe for concurrent
// use.
type Projector struct {
	cal    *transform.Calibration
	logger logging.Logger
	// rays holds the undistorted normalized coordinates of every depth pixel, row-major. NaN
	// where the lens model cannot be inverted.
	rays []r2.Point
}

// New validates the calibration and precomputes the depth unprojection table.
func New(cal *transform.Calibration, logger logging.Logger) (*Projector, error) {
	if err := cal.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid calibration")
	}
	p := &Projector{cal: cal, logger: logger}
	p.rays = unprojectionTable(cal.Depth)

	var invalid int
	for _, r := range p.rays {
		if math.IsNaN(r.X) {
			invalid++
		}
	}
	logger.Debugw("built depth unprojection table",
		"width", cal.Depth.Width, "height", cal.Depth.Height, "invalid", invalid)
	return p, nil
}

func unprojectionTable(model *transform.PinholeCameraModel) []r2.Point {
	table := make([]r2.Point, model.Width*model.Height)
	for v := 0; v < model.Height; v++ {
		for u := 0; u < model.Width; u++ {
			x, y, ok := model.PixelToRay(float64(u), float64(v))
			if !ok {
				x, y = math.NaN(), math.NaN()
			}
			table[v*model.Width+u] = r2.Point{X: x, Y: y}
		}
	}
	return table
}

// Calibration returns the calibration the projector was built with.
func (p *Projector) Calibration() *transform.Calibration {
	return p.cal
}

// model returns the camera model of a sensor.
func (p *Projector) model(sensor Sensor) (*transform.PinholeCameraModel, error) {
	switch sensor {
	case SensorDepth:
		return p.cal.Depth, nil
	case SensorColor:
		if !p.cal.HasColor() {
			return nil, errors.Wrap(ErrCalibrationMismatch, "color camera is not calibrated")
		}
		return p.cal.Color, nil
	default:
		return nil, errors.Errorf("unknown sensor %d", sensor)
	}
}

// unproject returns the depth-frame point, in millimeters, seen at depth pixel (u, v).
func (p *Projector) unproject(u, v int, d rimage.Depth) (r3.Vector, bool) {
	if d == 0 {
		return r3.Vector{}, false
	}
	ray := p.rays[v*p.cal.Depth.Width+u]
	if math.IsNaN(ray.X) {
		return r3.Vector{}, false
	}
	z := float64(d)
	return r3.Vector{X: ray.X * z, Y: ray.Y * z, Z: z}, true
}

func checkRaw(raw *k4a.RawImage, want k4a.ImageFormat) error {
	if raw == nil || len(raw.Buffer) == 0 {
		return errors.Wrapf(ErrInvalidImage, "%s image is empty", want)
	}
	if raw.Format != want {
		return errors.Wrapf(ErrInvalidImage, "expected %s image, got %s", want, raw.Format)
	}
	return nil
}

func (p *Projector) decodeDepth(raw *k4a.RawImage) (*rimage.DepthMap, error) {
	if err := checkRaw(raw, k4a.FormatDepth16); err != nil {
		return nil, err
	}
	if err := p.cal.Depth.CheckResolution(raw.Width, raw.Height); err != nil {
		return nil, errors.Wrap(err, "depth")
	}
	dm, err := raw.DepthMap()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "depth: %v", err)
	}
	return dm, nil
}

func (p *Projector) decodeColor(raw *k4a.RawImage) (*rimage.Image, error) {
	if err := checkRaw(raw, k4a.FormatBGRA32); err != nil {
		return nil, err
	}
	model, err := p.model(SensorColor)
	if err != nil {
		return nil, err
	}
	if err := model.CheckResolution(raw.Width, raw.Height); err != nil {
		return nil, errors.Wrap(err, "color")
	}
	img, err := raw.ColorImage()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "color: %v", err)
	}
	return img, nil
}
