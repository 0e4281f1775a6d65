package node

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/rimage/transform"
)

// Params is one configuration snapshot of the driver. It is never mutated once handed to a Node.
type Params struct {
	// SensorSN selects a device by serial number; empty opens the first one found.
	SensorSN string `yaml:"sensor_sn" json:"sensor_sn"`

	DepthEnabled    bool   `yaml:"depth_enabled" json:"depth_enabled"`
	DepthMode       string `yaml:"depth_mode" json:"depth_mode"`
	ColorEnabled    bool   `yaml:"color_enabled" json:"color_enabled"`
	ColorResolution string `yaml:"color_resolution" json:"color_resolution"`
	FPS             int    `yaml:"fps" json:"fps"`
	ImuEnabled      bool   `yaml:"imu_enabled" json:"imu_enabled"`

	// SynchronizedImagesOnly drops captures that lack depth or color.
	SynchronizedImagesOnly bool `yaml:"synchronized_images_only" json:"synchronized_images_only"`
	// Registration publishes depth_to_rgb and rgb_to_depth images.
	Registration bool `yaml:"registration" json:"registration"`
	// Rectify publishes undistorted depth and color images.
	Rectify bool `yaml:"rectify" json:"rectify"`

	PointCloud             bool `yaml:"point_cloud" json:"point_cloud"`
	RGBPointCloud          bool `yaml:"rgb_point_cloud" json:"rgb_point_cloud"`
	PointCloudInDepthFrame bool `yaml:"point_cloud_in_depth_frame" json:"point_cloud_in_depth_frame"`

	RescaleIRToMono8     bool    `yaml:"rescale_ir_to_mono8" json:"rescale_ir_to_mono8"`
	IRMono8ScalingFactor float64 `yaml:"ir_mono8_scaling_factor" json:"ir_mono8_scaling_factor"`

	// TFPrefix is prepended to every frame id.
	TFPrefix string `yaml:"tf_prefix" json:"tf_prefix"`

	// Calibration files in ROS camera_info YAML replace the factory intrinsics of a sensor.
	DepthCalibrationFile string `yaml:"depth_calibration_file" json:"depth_calibration_file"`
	ColorCalibrationFile string `yaml:"color_calibration_file" json:"color_calibration_file"`

	CaptureTimeout     time.Duration `yaml:"capture_timeout" json:"capture_timeout"`
	MaxCaptureErrors   int           `yaml:"max_capture_errors" json:"max_capture_errors"`
	MaxCaptureTimeouts int           `yaml:"max_capture_timeouts" json:"max_capture_timeouts"`
	ImuTimeout         time.Duration `yaml:"imu_timeout" json:"imu_timeout"`

	TimesyncAlpha         float64       `yaml:"timesync_alpha" json:"timesync_alpha"`
	TimesyncSnapThreshold time.Duration `yaml:"timesync_snap_threshold" json:"timesync_snap_threshold"`
}

// DefaultParams returns the parameters the driver starts with when nothing is configured.
func DefaultParams() Params {
	return Params{
		DepthEnabled:          true,
		DepthMode:             string(k4a.DepthModeNFOVUnbinned),
		ColorEnabled:          false,
		ColorResolution:       string(k4a.ColorResolution720P),
		FPS:                   5,
		PointCloud:            false,
		Registration:          true,
		IRMono8ScalingFactor:  1,
		CaptureTimeout:        time.Second,
		MaxCaptureErrors:      10,
		MaxCaptureTimeouts:    30,
		ImuTimeout:            time.Second,
		TimesyncAlpha:         0.10,
		TimesyncSnapThreshold: 10 * time.Millisecond,
	}
}

// LoadParams reads a YAML (or JSON) parameter file over the defaults and validates the result.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, errors.Wrap(err, "error reading params file")
	}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return Params{}, errors.Wrapf(err, "error parsing params file %q", path)
	}
	if err := params.Validate(); err != nil {
		return Params{}, errors.Wrapf(err, "invalid params file %q", path)
	}
	return params, nil
}

// Validate ensures all parts of the params are valid.
func (p Params) Validate() error {
	if err := p.DeviceConfiguration().Validate(); err != nil {
		return err
	}
	if p.CaptureTimeout <= 0 {
		return errors.New("capture_timeout must be positive")
	}
	if p.ImuEnabled && p.ImuTimeout <= 0 {
		return errors.New("imu_timeout must be positive")
	}
	if p.MaxCaptureErrors <= 0 {
		return errors.New("max_capture_errors must be positive")
	}
	if p.MaxCaptureTimeouts < 0 {
		return errors.New("max_capture_timeouts cannot be negative")
	}
	if p.RescaleIRToMono8 && p.IRMono8ScalingFactor <= 0 {
		return errors.New("ir_mono8_scaling_factor must be positive")
	}
	if p.TimesyncAlpha <= 0 || p.TimesyncAlpha > 1 {
		return errors.Errorf("timesync_alpha must be in (0, 1], got %v", p.TimesyncAlpha)
	}
	if p.TimesyncSnapThreshold <= 0 {
		return errors.New("timesync_snap_threshold must be positive")
	}
	if p.PointCloud && !p.DepthEnabled {
		return errors.New("point_cloud needs depth_enabled")
	}
	if p.RGBPointCloud && !(p.PointCloud && p.ColorEnabled) {
		return errors.New("rgb_point_cloud needs point_cloud and color_enabled")
	}
	if p.ColorCalibrationFile != "" && !p.ColorEnabled {
		return errors.New("color_calibration_file needs color_enabled")
	}
	return nil
}

// DeviceConfiguration returns the stream settings of the params.
func (p Params) DeviceConfiguration() k4a.DeviceConfiguration {
	cfg := k4a.DeviceConfiguration{
		DepthMode:              k4a.DepthModeOff,
		ColorResolution:        k4a.ColorResolutionOff,
		FPS:                    p.FPS,
		SynchronizedImagesOnly: p.SynchronizedImagesOnly,
		ImuEnabled:             p.ImuEnabled,
	}
	if p.DepthEnabled {
		cfg.DepthMode = k4a.DepthMode(strings.ToUpper(p.DepthMode))
	}
	if p.ColorEnabled {
		cfg.ColorResolution = k4a.ColorResolution(strings.ToUpper(p.ColorResolution))
	}
	return cfg
}

// needsRestart reports whether moving from p to next requires restarting the streams.
func (p Params) needsRestart(next Params) bool {
	return p.DeviceConfiguration() != next.DeviceConfiguration() ||
		p.DepthCalibrationFile != next.DepthCalibrationFile ||
		p.ColorCalibrationFile != next.ColorCalibrationFile
}

// Frame ids.
const (
	DepthFrame = "depth_camera_link"
	ColorFrame = "rgb_camera_link"
	ImuFrame   = "imu_link"
)

func (p Params) frame(name string) string {
	return p.TFPrefix + name
}

// loadOverrides reads the configured calibration files.
func (p Params) loadOverrides() (depth, color *transform.PinholeCameraModel, err error) {
	if p.DepthCalibrationFile != "" {
		if depth, err = readCalibrationFile(p.DepthCalibrationFile); err != nil {
			return nil, nil, err
		}
	}
	if p.ColorCalibrationFile != "" {
		if color, err = readCalibrationFile(p.ColorCalibrationFile); err != nil {
			return nil, nil, err
		}
	}
	return depth, color, nil
}

// readCalibrationFile reads a ROS camera_info YAML file, or a bare intrinsics JSON file which
// describes a camera without distortion.
func readCalibrationFile(path string) (*transform.PinholeCameraModel, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(path)
		if err != nil {
			return nil, err
		}
		return &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}, nil
	}
	model, _, err := transform.ReadCameraInfoFile(path)
	return model, err
}
