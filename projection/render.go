package projection

import (
	"github.com/pkg/errors"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/ros"
)

// RenderDepth encodes a depth image unchanged as 16UC1.
func (p *Projector) RenderDepth(header ros.Header, raw *k4a.RawImage) (*ros.Image, error) {
	dm, err := p.decodeDepth(raw)
	if err != nil {
		return nil, err
	}
	return ros.NewDepthImage(header, dm), nil
}

// RenderColor encodes a color image as bgra8.
func (p *Projector) RenderColor(header ros.Header, raw *k4a.RawImage) (*ros.Image, error) {
	img, err := p.decodeColor(raw)
	if err != nil {
		return nil, err
	}
	return ros.NewColorImage(header, img), nil
}

// RenderIR encodes an infrared image as mono16, or as mono8 scaled by scale when mono8 is set.
func (p *Projector) RenderIR(header ros.Header, raw *k4a.RawImage, mono8 bool, scale float64) (*ros.Image, error) {
	if err := checkRaw(raw, k4a.FormatIR16); err != nil {
		return nil, err
	}
	if err := p.cal.Depth.CheckResolution(raw.Width, raw.Height); err != nil {
		return nil, errors.Wrap(err, "ir")
	}
	ir, err := raw.IRImage()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "ir: %v", err)
	}
	if mono8 {
		return ros.NewMono8Image(header, ir, scale), nil
	}
	return ros.NewMono16Image(header, ir), nil
}

// RectifyDepth removes lens distortion from a depth image. Depths are sampled nearest neighbor.
func (p *Projector) RectifyDepth(header ros.Header, raw *k4a.RawImage) (*ros.Image, error) {
	dm, err := p.decodeDepth(raw)
	if err != nil {
		return nil, err
	}
	rect, err := p.cal.Depth.UndistortDepthMap(dm)
	if err != nil {
		return nil, err
	}
	return ros.NewDepthImage(header, rect), nil
}

// RectifyColor removes lens distortion from a color image with bilinear sampling.
func (p *Projector) RectifyColor(header ros.Header, raw *k4a.RawImage) (*ros.Image, error) {
	img, err := p.decodeColor(raw)
	if err != nil {
		return nil, err
	}
	rect, err := p.cal.Color.UndistortImage(img)
	if err != nil {
		return nil, err
	}
	return ros.NewColorImage(header, rect), nil
}

// CameraInfo describes a sensor. Rectified info has zero distortion.
func (p *Projector) CameraInfo(header ros.Header, sensor Sensor, rectified bool) (*ros.CameraInfo, error) {
	model, err := p.model(sensor)
	if err != nil {
		return nil, err
	}
	return ros.NewCameraInfo(header, model, rectified)
}
