package bus

import (
	"context"
	"sync"

	"github.com/pebbe/zmq4"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/ros"
)

// ZMQ publishes on a ZeroMQ PUB socket. Each message is two frames: the topic, then the CBOR
// envelope, so subscribers can filter by topic prefix.
type ZMQ struct {
	mu     sync.Mutex
	socket *zmq4.Socket
}

// NewZMQ binds a PUB socket to endpoint, e.g. "tcp://*:5556".
func NewZMQ(endpoint string) (*ZMQ, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, errors.Wrap(err, "creating zmq socket")
	}
	if err := socket.SetSndhwm(64); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, errors.Wrapf(err, "binding zmq socket to %q", endpoint)
	}
	return &ZMQ{socket: socket}, nil
}

// Publish implements Publisher.
func (z *ZMQ) Publish(ctx context.Context, topic string, msg ros.Message) error {
	payload, err := Encode(topic, msg)
	if err != nil {
		return err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.socket == nil {
		return errors.New("publisher closed")
	}
	if _, err := z.socket.SendMessageDontwait(topic, payload); err != nil {
		return errors.Wrapf(err, "publishing on %q", topic)
	}
	return nil
}

// Close implements Publisher.
func (z *ZMQ) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.socket == nil {
		return nil
	}
	err := z.socket.Close()
	z.socket = nil
	return err
}
