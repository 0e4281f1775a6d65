package node

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/depthcam/k4a"
)

func TestDefaultParams(t *testing.T) {
	params := DefaultParams()
	test.That(t, params.Validate(), test.ShouldBeNil)
	cfg := params.DeviceConfiguration()
	test.That(t, cfg.DepthMode, test.ShouldEqual, k4a.DepthModeNFOVUnbinned)
	test.That(t, cfg.ColorResolution, test.ShouldEqual, k4a.ColorResolutionOff)
}

func TestLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	content := `
depth_mode: wfov_2x2binned
color_enabled: true
color_resolution: 1080p
fps: 15
point_cloud: true
rgb_point_cloud: true
capture_timeout: 250ms
tf_prefix: left_
`
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)

	params, err := LoadParams(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.CaptureTimeout, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, params.MaxCaptureErrors, test.ShouldEqual, 10)
	test.That(t, params.frame(DepthFrame), test.ShouldEqual, "left_depth_camera_link")
	cfg := params.DeviceConfiguration()
	test.That(t, cfg.DepthMode, test.ShouldEqual, k4a.DepthModeWFOVBinned)
	test.That(t, cfg.ColorResolution, test.ShouldEqual, k4a.ColorResolution1080P)

	test.That(t, os.WriteFile(path, []byte("fps: [1"), 0o600), test.ShouldBeNil)
	_, err = LoadParams(path)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.WriteFile(path, []byte("fps: 7"), 0o600), test.ShouldBeNil)
	_, err = LoadParams(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParamsValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Params)
		errStr string
	}{
		{"timeout", func(p *Params) { p.CaptureTimeout = 0 }, "capture_timeout"},
		{"errors", func(p *Params) { p.MaxCaptureErrors = 0 }, "max_capture_errors"},
		{"alpha", func(p *Params) { p.TimesyncAlpha = 0 }, "timesync_alpha"},
		{"snap", func(p *Params) { p.TimesyncSnapThreshold = 0 }, "timesync_snap_threshold"},
		{"mono8", func(p *Params) { p.RescaleIRToMono8, p.IRMono8ScalingFactor = true, 0 }, "ir_mono8_scaling_factor"},
		{"rgb cloud", func(p *Params) { p.PointCloud, p.RGBPointCloud = true, true }, "rgb_point_cloud"},
		{"cloud without depth", func(p *Params) {
			p.DepthEnabled, p.ColorEnabled, p.PointCloud = false, true, true
		}, "point_cloud"},
		{"imu timeout", func(p *Params) { p.ImuEnabled, p.ImuTimeout = true, 0 }, "imu_timeout"},
		{"color file", func(p *Params) { p.ColorCalibrationFile = "c.yaml" }, "color_calibration_file"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultParams()
			tc.modify(&params)
			err := params.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}

	a := DefaultParams()
	b := a
	b.PointCloud = true
	test.That(t, a.needsRestart(b), test.ShouldBeFalse)
	b.FPS = 30
	test.That(t, a.needsRestart(b), test.ShouldBeTrue)
}
