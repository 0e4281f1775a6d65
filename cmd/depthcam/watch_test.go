package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils"
	"go.viam.com/utils/testutils"

	"go.viam.com/depthcam/bus"
	"go.viam.com/depthcam/k4a/fake"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/node"
)

func TestParamsWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	test.That(t, os.WriteFile(path, []byte("fps: 5\n"), 0o600), test.ShouldBeNil)

	var mu sync.Mutex
	var applied []node.Params
	apply := func(p node.Params) error {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, p)
		return nil
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(applied)
	}

	w, err := newParamsWatcher(path, apply, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	workers := utils.NewBackgroundStoppableWorkers(w.Run)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
		workers.Stop()
	}()

	// other files in the directory are ignored
	test.That(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("fps: 30\n"), 0o600), test.ShouldBeNil)
	// an invalid edit keeps the running params
	test.That(t, os.WriteFile(path, []byte("fps: 7\n"), 0o600), test.ShouldBeNil)
	time.Sleep(3 * reloadDebounce)
	test.That(t, count(), test.ShouldEqual, 0)

	test.That(t, os.WriteFile(path, []byte("fps: 30\npoint_cloud: true\n"), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 100, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, count(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	mu.Lock()
	last := applied[len(applied)-1]
	mu.Unlock()
	test.That(t, last.FPS, test.ShouldEqual, 30)
	test.That(t, last.PointCloud, test.ShouldBeTrue)
}

func TestParamsWatcherMissingDirectory(t *testing.T) {
	_, err := newParamsWatcher(filepath.Join(t.TempDir(), "nope", "params.yaml"),
		func(node.Params) error { return nil }, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunNode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	test.That(t, os.WriteFile(path, []byte("depth_mode: nfov_2x2binned\nfps: 30\n"), 0o600), test.ShouldBeNil)
	params, err := node.LoadParams(path)
	test.That(t, err, test.ShouldBeNil)

	dev := fake.NewDevice("cli", fake.Config{})
	mem := bus.NewMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runNode(ctx, dev, mem, nil, params, path, "", logger)
	}()

	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, mem.Count(bus.TopicDepthImage), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	test.That(t, mem.Count(bus.TopicColorImage), test.ShouldEqual, 0)

	// editing the params file reconfigures the running node
	content := "depth_mode: nfov_2x2binned\nfps: 30\ncolor_enabled: true\n"
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, mem.Count(bus.TopicColorImage), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	test.That(t, dev.Starts(), test.ShouldBeGreaterThanOrEqualTo, 2)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, dev.Stops(), test.ShouldEqual, dev.Starts())
}

func TestRunNodeDeviceFailure(t *testing.T) {
	params := node.DefaultParams()
	params.MaxCaptureErrors = 2
	dev := fake.NewDevice("cli", fake.Config{})
	dev.FailCaptures(100)

	err := runNode(context.Background(), dev, bus.NewMemory(0), nil, params, "", "", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "consecutive capture errors")
}
