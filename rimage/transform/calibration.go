package transform

import (
	"github.com/pkg/errors"
)

// Calibration is the factory calibration of a depth camera: one camera model per sensor and the
// rigid transform between them. It is loaded once and only read afterwards.
type Calibration struct {
	Depth *PinholeCameraModel
	// Color is nil when the color sensor is disabled.
	Color        *PinholeCameraModel
	DepthToColor *Extrinsics
	ColorToDepth *Extrinsics
}

// NewCalibration validates the sensor models and derives ColorToDepth from depthToColor.
func NewCalibration(depth, color *PinholeCameraModel, depthToColor *Extrinsics) (*Calibration, error) {
	cal := &Calibration{Depth: depth, Color: color, DepthToColor: depthToColor}
	if depthToColor != nil && depthToColor.Rotation != nil {
		cal.ColorToDepth = depthToColor.Inverse()
	}
	if err := cal.CheckValid(); err != nil {
		return nil, err
	}
	return cal, nil
}

// CheckValid returns an error unless the calibration can be used for projection.
func (c *Calibration) CheckValid() error {
	if c == nil {
		return NewNoIntrinsicsError("calibration not initialized")
	}
	if err := c.Depth.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if c.Color == nil {
		return nil
	}
	if err := c.Color.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if err := c.DepthToColor.CheckValid(); err != nil {
		return errors.Wrap(err, "depth to color")
	}
	if err := c.ColorToDepth.CheckValid(); err != nil {
		return errors.Wrap(err, "color to depth")
	}
	return nil
}

// HasColor reports whether the color sensor is calibrated.
func (c *Calibration) HasColor() bool {
	return c != nil && c.Color != nil
}

// WithOverrides returns a copy of the calibration with the given sensor models swapped in. Nil
// overrides keep the original model. Overrides must match the resolution they replace.
// Extrinsics are never overridden.
func (c *Calibration) WithOverrides(depth, color *PinholeCameraModel) (*Calibration, error) {
	out := *c
	if depth != nil {
		if err := depth.CheckResolution(c.Depth.Width, c.Depth.Height); err != nil {
			return nil, errors.Wrap(err, "depth override")
		}
		out.Depth = depth
	}
	if color != nil {
		if c.Color == nil {
			return nil, errors.New("cannot override color calibration while color is disabled")
		}
		if err := color.CheckResolution(c.Color.Width, c.Color.Height); err != nil {
			return nil, errors.Wrap(err, "color override")
		}
		out.Color = color
	}
	if err := out.CheckValid(); err != nil {
		return nil, err
	}
	return &out, nil
}
