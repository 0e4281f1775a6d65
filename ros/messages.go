// Package ros defines the sensor_msgs shapes the driver publishes and the conversions that build
// them from images, calibration and point clouds.
package ros

import (
	"time"
)

// Message is anything that can be published on a topic.
type Message interface {
	// MessageType returns the ROS type name, e.g. "sensor_msgs/Image".
	MessageType() string
	// GetHeader returns the message header.
	GetHeader() Header
}

// Time is a ROS time stamp: seconds and nanoseconds since the Unix epoch.
type Time struct {
	Sec  uint32 `json:"secs"`
	Nsec uint32 `json:"nsecs"`
}

// NewTime converts a wall clock time to a ROS stamp.
func NewTime(t time.Time) Time {
	ns := t.UnixNano()
	if ns < 0 {
		return Time{}
	}
	return Time{Sec: uint32(ns / int64(time.Second)), Nsec: uint32(ns % int64(time.Second))}
}

// ToTime converts back to a time.Time.
func (t Time) ToTime() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nsec))
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Image is sensor_msgs/Image.
type Image struct {
	Header      Header `json:"header"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
	Encoding    string `json:"encoding"`
	IsBigendian uint8  `json:"is_bigendian"`
	Step        uint32 `json:"step"`
	Data        []byte `json:"data"`
}

// MessageType implements Message.
func (m *Image) MessageType() string { return "sensor_msgs/Image" }

// GetHeader implements Message.
func (m *Image) GetHeader() Header { return m.Header }

// RegionOfInterest is sensor_msgs/RegionOfInterest.
type RegionOfInterest struct {
	XOffset   uint32 `json:"x_offset"`
	YOffset   uint32 `json:"y_offset"`
	Height    uint32 `json:"height"`
	Width     uint32 `json:"width"`
	DoRectify bool   `json:"do_rectify"`
}

// CameraInfo is sensor_msgs/CameraInfo.
type CameraInfo struct {
	Header          Header           `json:"header"`
	Height          uint32           `json:"height"`
	Width           uint32           `json:"width"`
	DistortionModel string           `json:"distortion_model"`
	D               []float64        `json:"D"`
	K               [9]float64       `json:"K"`
	R               [9]float64       `json:"R"`
	P               [12]float64      `json:"P"`
	BinningX        uint32           `json:"binning_x"`
	BinningY        uint32           `json:"binning_y"`
	ROI             RegionOfInterest `json:"roi"`
}

// MessageType implements Message.
func (m *CameraInfo) MessageType() string { return "sensor_msgs/CameraInfo" }

// GetHeader implements Message.
func (m *CameraInfo) GetHeader() Header { return m.Header }

// PointField datatypes.
const (
	PointFieldInt8    uint8 = 1
	PointFieldUint8   uint8 = 2
	PointFieldInt16   uint8 = 3
	PointFieldUint16  uint8 = 4
	PointFieldInt32   uint8 = 5
	PointFieldUint32  uint8 = 6
	PointFieldFloat32 uint8 = 7
	PointFieldFloat64 uint8 = 8
)

// PointField is sensor_msgs/PointField.
type PointField struct {
	Name     string `json:"name"`
	Offset   uint32 `json:"offset"`
	Datatype uint8  `json:"datatype"`
	Count    uint32 `json:"count"`
}

// PointCloud2 is sensor_msgs/PointCloud2.
type PointCloud2 struct {
	Header      Header       `json:"header"`
	Height      uint32       `json:"height"`
	Width       uint32       `json:"width"`
	Fields      []PointField `json:"fields"`
	IsBigendian bool         `json:"is_bigendian"`
	PointStep   uint32       `json:"point_step"`
	RowStep     uint32       `json:"row_step"`
	Data        []byte       `json:"data"`
	IsDense     bool         `json:"is_dense"`
}

// MessageType implements Message.
func (m *PointCloud2) MessageType() string { return "sensor_msgs/PointCloud2" }

// GetHeader implements Message.
func (m *PointCloud2) GetHeader() Header { return m.Header }

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Imu is sensor_msgs/Imu.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

// MessageType implements Message.
func (m *Imu) MessageType() string { return "sensor_msgs/Imu" }

// GetHeader implements Message.
func (m *Imu) GetHeader() Header { return m.Header }

// Temperature is sensor_msgs/Temperature.
type Temperature struct {
	Header      Header  `json:"header"`
	Temperature float64 `json:"temperature"`
	Variance    float64 `json:"variance"`
}

// MessageType implements Message.
func (m *Temperature) MessageType() string { return "sensor_msgs/Temperature" }

// GetHeader implements Message.
func (m *Temperature) GetHeader() Header { return m.Header }
