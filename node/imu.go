package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcam/bus"
	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/ros"
)

const (
	imuIdleWait = 100 * time.Millisecond
	// temperaturePeriod is how often, in device time, a temperature reading is published.
	temperaturePeriod = time.Second
)

// imuLoop publishes IMU samples while the IMU is enabled. Samples read before the capture loop
// has established a timestamp offset are dropped since they cannot be placed on the host clock.
func (n *Node) imuLoop(ctx context.Context) {
	var (
		seq             uint32
		lastTemperature time.Duration
		haveTemperature bool
	)
	for {
		if ctx.Err() != nil || n.State() != StateRunning {
			return
		}
		params := n.currentParams()
		if !params.ImuEnabled {
			if !utils.SelectContextOrWait(ctx, imuIdleWait) {
				return
			}
			continue
		}

		sample, err := n.dev.GetImuSample(ctx, params.ImuTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// streams restart under a reconfiguration, so errors here are expected to pass
			if !errors.Is(err, k4a.ErrCaptureTimeout) {
				n.logger.Debugw("imu read failed", "error", err)
			}
			if !utils.SelectContextOrWait(ctx, captureErrorBackoff) {
				return
			}
			continue
		}
		if _, ok := n.sync.Offset(); !ok {
			continue
		}
		n.imuSamples.Inc()
		seq++

		header := ros.Header{
			Seq:     seq,
			Stamp:   ros.NewTime(n.sync.ImuToHostTime(sample.AccTimestampUsec)),
			FrameID: params.frame(ImuFrame),
		}
		if err := n.pub.Publish(ctx, bus.TopicImu, imuMessage(header, sample)); err != nil {
			n.logDrop("publish failed", "topic", bus.TopicImu, "error", err)
		}

		device := time.Duration(sample.AccTimestampUsec) * time.Microsecond
		if haveTemperature && device-lastTemperature < temperaturePeriod {
			continue
		}
		lastTemperature, haveTemperature = device, true
		temp := &ros.Temperature{Header: header, Temperature: sample.Temperature}
		if err := n.pub.Publish(ctx, bus.TopicTemperature, temp); err != nil {
			n.logDrop("publish failed", "topic", bus.TopicTemperature, "error", err)
		}
	}
}

// imuMessage converts a sample. The device does not estimate orientation, which ROS signals with
// -1 as the first orientation covariance.
func imuMessage(header ros.Header, sample *k4a.ImuSample) *ros.Imu {
	return &ros.Imu{
		Header:                header,
		OrientationCovariance: [9]float64{-1},
		AngularVelocity: ros.Vector3{
			X: sample.AngularVelocity.X,
			Y: sample.AngularVelocity.Y,
			Z: sample.AngularVelocity.Z,
		},
		LinearAcceleration: ros.Vector3{
			X: sample.Acceleration.X,
			Y: sample.Acceleration.Y,
			Z: sample.Acceleration.Z,
		},
	}
}
