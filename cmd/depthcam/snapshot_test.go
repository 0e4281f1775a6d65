package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/k4a/fake"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/node"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage/transform"
)

func TestWriteSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snap")
	params := node.DefaultParams()
	params.DepthMode = string(k4a.DepthModeNFOVBinned)
	params.ColorEnabled = true
	dev := fake.NewDevice("snap", fake.Config{})

	err := writeSnapshot(context.Background(), dev, params, dir, pointcloud.PCDAscii, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Starts(), test.ShouldEqual, 1)
	test.That(t, dev.Stops(), test.ShouldEqual, 1)

	//nolint:gosec
	raw, err := os.ReadFile(filepath.Join(dir, snapshotCloud))
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(string(raw), "\n")
	test.That(t, lines, test.ShouldContain, "FIELDS x y z rgb")
	test.That(t, lines, test.ShouldContain, "WIDTH 320")
	test.That(t, lines, test.ShouldContain, "HEIGHT 288")

	depth, name, err := transform.ReadCameraInfoFile(filepath.Join(dir, snapshotDepthInfo))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, node.DepthFrame)
	test.That(t, depth.Width, test.ShouldEqual, 320)

	color, _, err := transform.ReadCameraInfoFile(filepath.Join(dir, snapshotColorInfo))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, color.Width, test.ShouldEqual, 1280)
}

func TestWriteSnapshotErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	colorOnly := node.DefaultParams()
	colorOnly.DepthEnabled = false
	colorOnly.ColorEnabled = true
	err := writeSnapshot(context.Background(), fake.NewDevice("x", fake.Config{}), colorOnly, t.TempDir(),
		pointcloud.PCDBinary, logger)
	test.That(t, err, test.ShouldNotBeNil)

	dev := fake.NewDevice("x", fake.Config{})
	dev.FailCaptures(1)
	err = writeSnapshot(context.Background(), dev, node.DefaultParams(), t.TempDir(), pointcloud.PCDBinary, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, dev.Stops(), test.ShouldEqual, 1)
}
