package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcam/bus"
	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/projection"
	"go.viam.com/depthcam/ros"
)

const captureErrorBackoff = 10 * time.Millisecond

// captureLoop pulls captures until ctx is done or the device fails. Parameter updates are applied
// between captures.
func (n *Node) captureLoop(ctx context.Context) {
	var consecutiveErrors, consecutiveTimeouts int
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case params := <-n.reconfigure:
			if err := n.applyParams(ctx, params); err != nil {
				n.fail(err)
				return
			}
			consecutiveErrors, consecutiveTimeouts = 0, 0
		default:
		}

		params, projector := n.current()
		capture, err := n.dev.GetCapture(ctx, params.CaptureTimeout)
		switch {
		case err == nil:
			consecutiveErrors, consecutiveTimeouts = 0, 0
		case ctx.Err() != nil:
			return
		case errors.Is(err, k4a.ErrCaptureTimeout):
			n.captureTimeouts.Inc()
			consecutiveTimeouts++
			n.logger.Debugw("capture timed out", "timeout", params.CaptureTimeout, "consecutive", consecutiveTimeouts)
			if params.MaxCaptureTimeouts > 0 && consecutiveTimeouts >= params.MaxCaptureTimeouts {
				n.fail(k4a.Unavailable(err, "no data for %d consecutive captures", consecutiveTimeouts))
				return
			}
			continue
		default:
			n.captureErrors.Inc()
			consecutiveErrors++
			n.setLastErr(err)
			if consecutiveErrors >= params.MaxCaptureErrors {
				n.fail(k4a.Unavailable(err, "%d consecutive capture errors", consecutiveErrors))
				return
			}
			n.logger.Warnw("capture failed", "error", err, "consecutive", consecutiveErrors)
			if !utils.SelectContextOrWait(ctx, captureErrorBackoff) {
				return
			}
			continue
		}

		n.publishCapture(ctx, capture, params, projector)
	}
}

// outgoing is one message to build and publish for a capture.
type outgoing struct {
	topic string
	build func() (ros.Message, error)
}

// publishCapture converts and publishes everything the params ask for. A message that cannot be
// built is logged and skipped; the rest of the capture is still published.
func (n *Node) publishCapture(ctx context.Context, capture *k4a.Capture, params Params, p *projection.Projector) {
	ref := capture.Reference()
	if ref == nil {
		n.framesDropped.Inc()
		n.logger.Debugw("dropping empty capture")
		return
	}
	if params.SynchronizedImagesOnly && (capture.Depth == nil || capture.Color == nil) {
		n.framesDropped.Inc()
		n.logger.Debugw("dropping unsynchronized capture", "depth", capture.Depth != nil, "color", capture.Color != nil)
		return
	}

	stamp := n.sync.Stamp(ref.DeviceTimestamp, ref.SystemTimestamp)
	n.seq++
	header := func(frame string, img *k4a.RawImage) ros.Header {
		t := stamp
		if img != nil && img != ref {
			t = n.sync.ToHostTime(img.DeviceTimestamp)
		}
		return ros.Header{Seq: n.seq, Stamp: ros.NewTime(t), FrameID: params.frame(frame)}
	}
	depthHeader := header(DepthFrame, capture.Depth)
	irHeader := header(DepthFrame, capture.IR)
	colorHeader := header(ColorFrame, capture.Color)

	var out []outgoing
	add := func(topic string, build func() (ros.Message, error)) {
		out = append(out, outgoing{topic: topic, build: build})
	}
	info := func(h ros.Header, sensor projection.Sensor, rectified bool) func() (ros.Message, error) {
		return func() (ros.Message, error) { return p.CameraInfo(h, sensor, rectified) }
	}

	if capture.Depth != nil {
		add(bus.TopicDepthImage, func() (ros.Message, error) { return p.RenderDepth(depthHeader, capture.Depth) })
		add(bus.TopicDepthInfo, info(depthHeader, projection.SensorDepth, false))
		if params.Rectify {
			add(bus.TopicDepthRect, func() (ros.Message, error) { return p.RectifyDepth(depthHeader, capture.Depth) })
		}
	}
	if capture.IR != nil {
		add(bus.TopicIRImage, func() (ros.Message, error) {
			return p.RenderIR(irHeader, capture.IR, params.RescaleIRToMono8, params.IRMono8ScalingFactor)
		})
		add(bus.TopicIRInfo, info(irHeader, projection.SensorDepth, false))
	}
	if capture.Color != nil {
		add(bus.TopicColorImage, func() (ros.Message, error) { return p.RenderColor(colorHeader, capture.Color) })
		add(bus.TopicColorInfo, info(colorHeader, projection.SensorColor, false))
		if params.Rectify {
			add(bus.TopicColorRect, func() (ros.Message, error) { return p.RectifyColor(colorHeader, capture.Color) })
		}
	}
	if capture.Depth != nil && capture.Color != nil && params.Registration {
		// depth_to_rgb lives in the color camera, rgb_to_depth in the depth camera
		registeredDepth := depthHeader
		registeredDepth.FrameID = colorHeader.FrameID
		add(bus.TopicDepthToColor, func() (ros.Message, error) { return p.DepthInColorFrame(registeredDepth, capture.Depth) })
		add(bus.TopicDepthToColorInfo, info(registeredDepth, projection.SensorColor, false))
		add(bus.TopicColorToDepth, func() (ros.Message, error) {
			return p.ColorInDepthFrame(depthHeader, capture.Depth, capture.Color)
		})
		add(bus.TopicColorToDepthInfo, info(depthHeader, projection.SensorDepth, false))
	}
	if capture.Depth != nil && params.PointCloud {
		add(bus.TopicPoints, func() (ros.Message, error) { return n.pointCloud(depthHeader, colorHeader, capture, params, p) })
	}

	var published int
	for _, o := range out {
		msg, err := o.build()
		if err != nil {
			n.logDrop("dropping message", "topic", o.topic, "error", err)
			continue
		}
		if err := n.pub.Publish(ctx, o.topic, msg); err != nil {
			n.logDrop("publish failed", "topic", o.topic, "error", err)
			continue
		}
		published++
	}
	if published == 0 {
		n.framesDropped.Inc()
		return
	}
	n.framesPublished.Inc()
}

func (n *Node) pointCloud(
	depthHeader, colorHeader ros.Header,
	capture *k4a.Capture,
	params Params,
	p *projection.Projector,
) (ros.Message, error) {
	if !params.RGBPointCloud || capture.Color == nil {
		pc, err := p.PointCloud(capture.Depth)
		if err != nil {
			return nil, err
		}
		return ros.NewPointCloud2(depthHeader, pc), nil
	}
	if params.PointCloudInDepthFrame {
		pc, err := p.ColorPointCloudInDepthFrame(capture.Depth, capture.Color)
		if err != nil {
			return nil, err
		}
		return ros.NewPointCloud2(depthHeader, pc), nil
	}
	pc, err := p.ColorPointCloud(capture.Depth, capture.Color)
	if err != nil {
		return nil, err
	}
	colorHeader.Stamp = depthHeader.Stamp
	return ros.NewPointCloud2(colorHeader, pc), nil
}
