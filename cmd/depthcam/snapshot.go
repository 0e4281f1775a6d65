package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/node"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/projection"
	"go.viam.com/depthcam/rimage/transform"
)

// Files written by a snapshot.
const (
	snapshotCloud     = "points.pcd"
	snapshotDepthInfo = "depth_camera_info.yaml"
	snapshotColorInfo = "rgb_camera_info.yaml"
)

func snapshot(c *cli.Context) error {
	logger, closeLog, err := newLogger(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closeLog)
	params, opener, err := setup(c)
	if err != nil {
		return err
	}
	pcdType := pointcloud.PCDBinary
	if c.Bool(flagASCII) {
		pcdType = pointcloud.PCDAscii
	}
	dir := c.Path(flagOut)
	return k4a.WithDevice(c.Context, opener, params.SensorSN, func(dev k4a.Device) error {
		return writeSnapshot(c.Context, dev, params, dir, pcdType, logger)
	})
}

// writeSnapshot starts the streams, grabs one capture and writes its point cloud and the factory
// calibration of each enabled sensor into dir.
func writeSnapshot(
	ctx context.Context,
	dev k4a.Device,
	params node.Params,
	dir string,
	pcdType pointcloud.PCDType,
	logger logging.Logger,
) (err error) {
	if !params.DepthEnabled {
		return errors.New("a snapshot needs depth_enabled")
	}
	cfg := params.DeviceConfiguration()
	cal, err := dev.Calibration(ctx, cfg)
	if err != nil {
		return err
	}
	projector, err := projection.New(cal, logger.Sublogger("projection"))
	if err != nil {
		return err
	}
	if err := dev.Start(ctx, cfg); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, dev.Stop(ctx))
	}()

	capture, err := dev.GetCapture(ctx, params.CaptureTimeout)
	if err != nil {
		return err
	}
	if capture.Depth == nil {
		return errors.New("capture has no depth image")
	}
	var pc *pointcloud.Organized
	if capture.Color != nil {
		pc, err = projector.ColorPointCloudInDepthFrame(capture.Depth, capture.Color)
	} else {
		pc, err = projector.PointCloud(capture.Depth)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	if err := writePCD(filepath.Join(dir, snapshotCloud), pc, pcdType); err != nil {
		return err
	}
	if err := transform.WriteCameraInfoFile(filepath.Join(dir, snapshotDepthInfo), node.DepthFrame, cal.Depth); err != nil {
		return err
	}
	if cal.HasColor() {
		if err := transform.WriteCameraInfoFile(filepath.Join(dir, snapshotColorInfo), node.ColorFrame, cal.Color); err != nil {
			return err
		}
	}
	logger.Infow("snapshot written", "dir", dir, "valid_points", pc.MetaData().ValidCount)
	return nil
}

func writePCD(path string, pc *pointcloud.Organized, pcdType pointcloud.PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return pointcloud.ToPCD(pc, f, pcdType)
}
