package bus

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/ros"
)

// Envelope is the wire form of a published message.
type Envelope struct {
	Topic   string          `cbor:"topic"`
	Type    string          `cbor:"type"`
	Stamp   ros.Time        `cbor:"stamp"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// Encode wraps msg in an Envelope and encodes it as CBOR.
func Encode(topic string, msg ros.Message) ([]byte, error) {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", msg.MessageType())
	}
	return cbor.Marshal(&Envelope{
		Topic:   topic,
		Type:    msg.MessageType(),
		Stamp:   msg.GetHeader().Stamp,
		Payload: payload,
	})
}

// Decode reads an Envelope. The payload is left encoded; see DecodeMessage.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decoding envelope")
	}
	return &env, nil
}

// DecodeMessage decodes the payload into a new message of the envelope's type.
func (env *Envelope) DecodeMessage() (ros.Message, error) {
	var msg ros.Message
	switch env.Type {
	case (&ros.Image{}).MessageType():
		msg = &ros.Image{}
	case (&ros.CameraInfo{}).MessageType():
		msg = &ros.CameraInfo{}
	case (&ros.PointCloud2{}).MessageType():
		msg = &ros.PointCloud2{}
	case (&ros.Imu{}).MessageType():
		msg = &ros.Imu{}
	case (&ros.Temperature{}).MessageType():
		msg = &ros.Temperature{}
	default:
		return nil, errors.Errorf("unknown message type %q", env.Type)
	}
	if err := cbor.Unmarshal(env.Payload, msg); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", env.Type)
	}
	return msg, nil
}
