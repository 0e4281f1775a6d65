// Package bus publishes driver messages to subscribers: in memory, over websockets, or on a
// ZeroMQ PUB socket.
package bus

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/depthcam/ros"
)

// Topics the driver publishes on.
const (
	TopicColorImage       = "rgb/image_raw"
	TopicColorInfo        = "rgb/camera_info"
	TopicColorRect        = "rgb/image_rect"
	TopicDepthImage       = "depth/image_raw"
	TopicDepthInfo        = "depth/camera_info"
	TopicDepthRect        = "depth/image_rect"
	TopicDepthToColor     = "depth_to_rgb/image_raw"
	TopicDepthToColorInfo = "depth_to_rgb/camera_info"
	TopicColorToDepth     = "rgb_to_depth/image_raw"
	TopicColorToDepthInfo = "rgb_to_depth/camera_info"
	TopicIRImage          = "ir/image_raw"
	TopicIRInfo           = "ir/camera_info"
	TopicPoints           = "points2"
	TopicImu              = "imu"
	TopicTemperature      = "temperature"
)

// A Publisher delivers messages on topics. Publish must not retain msg after returning.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg ros.Message) error
	Close() error
}

type multi []Publisher

// Multi publishes every message to all of pubs.
func Multi(pubs ...Publisher) Publisher {
	return multi(pubs)
}

func (m multi) Publish(ctx context.Context, topic string, msg ros.Message) error {
	var err error
	for _, p := range m {
		err = multierr.Combine(err, p.Publish(ctx, topic, msg))
	}
	return err
}

func (m multi) Close() error {
	var err error
	for _, p := range m {
		err = multierr.Combine(err, p.Close())
	}
	return err
}
