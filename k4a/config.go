package k4a

import (
	"strings"

	"github.com/pkg/errors"
)

// DepthMode selects the depth camera resolution and field of view.
type DepthMode string

// Depth modes.
const (
	DepthModeOff          DepthMode = "OFF"
	DepthModeNFOVBinned   DepthMode = "NFOV_2X2BINNED"
	DepthModeNFOVUnbinned DepthMode = "NFOV_UNBINNED"
	DepthModeWFOVBinned   DepthMode = "WFOV_2X2BINNED"
	DepthModeWFOVUnbinned DepthMode = "WFOV_UNBINNED"
	DepthModePassiveIR    DepthMode = "PASSIVE_IR"
)

// ColorResolution selects the color camera resolution.
type ColorResolution string

// Color resolutions.
const (
	ColorResolutionOff   ColorResolution = "OFF"
	ColorResolution720P  ColorResolution = "720P"
	ColorResolution1080P ColorResolution = "1080P"
	ColorResolution1440P ColorResolution = "1440P"
	ColorResolution1536P ColorResolution = "1536P"
	ColorResolution2160P ColorResolution = "2160P"
	ColorResolution3072P ColorResolution = "3072P"
)

// DeviceConfiguration is what the streams are started with.
type DeviceConfiguration struct {
	ColorResolution ColorResolution
	DepthMode       DepthMode
	FPS             int
	// SynchronizedImagesOnly drops captures missing either color or depth.
	SynchronizedImagesOnly bool
	ImuEnabled             bool
}

// Size returns the depth and IR image size for the mode.
func (m DepthMode) Size() (int, int, error) {
	switch DepthMode(strings.ToUpper(string(m))) {
	case DepthModeNFOVBinned:
		return 320, 288, nil
	case DepthModeNFOVUnbinned:
		return 640, 576, nil
	case DepthModeWFOVBinned:
		return 512, 512, nil
	case DepthModeWFOVUnbinned, DepthModePassiveIR:
		return 1024, 1024, nil
	case DepthModeOff, "":
		return 0, 0, nil
	default:
		return 0, 0, errors.Errorf("unknown depth mode %q", m)
	}
}

// Enabled reports whether depth or IR images are produced.
func (m DepthMode) Enabled() bool {
	return m != "" && m != DepthModeOff
}

// DepthEnabled reports whether depth images are produced; passive IR gives IR only.
func (m DepthMode) DepthEnabled() bool {
	return m.Enabled() && m != DepthModePassiveIR
}

// Size returns the color image size for the resolution.
func (r ColorResolution) Size() (int, int, error) {
	switch ColorResolution(strings.ToUpper(string(r))) {
	case ColorResolution720P:
		return 1280, 720, nil
	case ColorResolution1080P:
		return 1920, 1080, nil
	case ColorResolution1440P:
		return 2560, 1440, nil
	case ColorResolution1536P:
		return 2048, 1536, nil
	case ColorResolution2160P:
		return 3840, 2160, nil
	case ColorResolution3072P:
		return 4096, 3072, nil
	case ColorResolutionOff, "":
		return 0, 0, nil
	default:
		return 0, 0, errors.Errorf("unknown color resolution %q", r)
	}
}

// Enabled reports whether color images are produced.
func (r ColorResolution) Enabled() bool {
	return r != "" && r != ColorResolutionOff
}

// Validate checks the configuration is one the hardware supports.
func (cfg DeviceConfiguration) Validate() error {
	if _, _, err := cfg.DepthMode.Size(); err != nil {
		return err
	}
	if _, _, err := cfg.ColorResolution.Size(); err != nil {
		return err
	}
	if !cfg.DepthMode.Enabled() && !cfg.ColorResolution.Enabled() {
		return errors.New("at least one of depth or color must be enabled")
	}
	switch cfg.FPS {
	case 5, 15:
	case 30:
		if cfg.DepthMode == DepthModeWFOVUnbinned || cfg.ColorResolution == ColorResolution3072P {
			return errors.Errorf("%s/%s does not support 30 fps", cfg.DepthMode, cfg.ColorResolution)
		}
	default:
		return errors.Errorf("fps must be 5, 15 or 30, got %d", cfg.FPS)
	}
	if cfg.SynchronizedImagesOnly && !(cfg.DepthMode.Enabled() && cfg.ColorResolution.Enabled()) {
		return errors.New("synchronized images need both depth and color enabled")
	}
	return nil
}
