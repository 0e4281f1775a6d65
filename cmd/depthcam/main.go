// Package main runs the depth camera driver: it opens a device, publishes its streams over
// websockets and ZeroMQ, and applies edits to the params file while running.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/depthcam/bus"
	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/k4a/fake"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/node"
)

const (
	// Flags.
	flagParams      = "params"
	flagSerial      = "serial"
	flagDevice      = "device"
	flagWSAddr      = "ws-addr"
	flagZMQEndpoint = "zmq-endpoint"
	flagFakeDrift   = "fake-drift-ppm"
	flagDebug       = "debug"
	flagLogLevel    = "log-level"
	flagLogFile     = "log-file"
	flagOut         = "out"
	flagASCII       = "ascii"

	deviceFake = "fake"
)

func main() {
	app := &cli.App{
		Name:  "depthcam",
		Usage: "publish depth camera images, point clouds and IMU data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagParams,
				Aliases: []string{"c"},
				Usage:   "load driver parameters from `FILE` and watch it for changes",
			},
			&cli.StringFlag{
				Name:  flagSerial,
				Usage: "serial number of the device to open, overrides sensor_sn",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Value: deviceFake,
				Usage: "device backend to open",
			},
			&cli.StringFlag{
				Name:  flagWSAddr,
				Value: "localhost:8090",
				Usage: "serve websocket subscribers and /status on `ADDR`, empty to disable",
			},
			&cli.StringFlag{
				Name:  flagZMQEndpoint,
				Usage: "publish on a ZeroMQ PUB socket bound to `ENDPOINT`, e.g. tcp://*:5556",
			},
			&cli.Float64Flag{
				Name:   flagFakeDrift,
				Hidden: true,
				Usage:  "clock drift of the fake device in parts per million",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "minimum `LEVEL` to log: debug, info, warn or error",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "snapshot",
				Usage:     "write one capture as a point cloud plus the factory calibration, then exit",
				UsageText: "depthcam [global options] snapshot [--out DIR] [--ascii]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "write files into `DIR`",
					},
					&cli.BoolFlag{
						Name:  flagASCII,
						Usage: "write the point cloud as ascii PCD",
					},
				},
				Action: snapshot,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.Global().Errorw("exiting", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, closeLog, err := newLogger(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closeLog)
	params, opener, err := setup(c)
	if err != nil {
		return err
	}
	pub, ws, err := newPublisher(c, logger)
	if err != nil {
		return err
	}

	ctx := c.Context
	paramsPath := c.String(flagParams)
	return multierr.Combine(
		k4a.WithDevice(ctx, opener, params.SensorSN, func(dev k4a.Device) error {
			return runNode(ctx, dev, pub, ws, params, paramsPath, c.String(flagWSAddr), logger)
		}),
		pub.Close(),
	)
}

// newLogger builds the process logger from the global flags and installs it as the global one.
// The returned func closes the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, func() error, error) {
	level, err := logging.LevelFromString(c.String(flagLogLevel))
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}

	logger := logging.NewLogger("depthcam")
	closeLog := func() error { return nil }
	if path := c.Path(flagLogFile); path != "" {
		var closer io.Closer
		logger, closer = logging.NewLoggerWithFile("depthcam", level, path)
		closeLog = closer.Close
	}
	logger.SetLevel(level)
	logging.ReplaceGlobal(logger)
	return logger, closeLog, nil
}

// setup reads the startup params and picks the device opener from the global flags.
func setup(c *cli.Context) (node.Params, k4a.Opener, error) {
	params := node.DefaultParams()
	if path := c.String(flagParams); path != "" {
		var err error
		if params, err = node.LoadParams(path); err != nil {
			return node.Params{}, nil, err
		}
	}
	if serial := c.String(flagSerial); serial != "" {
		params.SensorSN = serial
	}

	opener, err := newOpener(c)
	if err != nil {
		return node.Params{}, nil, err
	}
	return params, opener, nil
}

func newOpener(c *cli.Context) (k4a.Opener, error) {
	switch backend := c.String(flagDevice); backend {
	case deviceFake:
		return &fake.Opener{Config: fake.Config{DriftPPM: c.Float64(flagFakeDrift)}}, nil
	default:
		return nil, errors.Errorf("unknown device backend %q", backend)
	}
}

func newPublisher(c *cli.Context, logger logging.Logger) (bus.Publisher, *bus.WebSocket, error) {
	var pubs []bus.Publisher
	var ws *bus.WebSocket
	if c.String(flagWSAddr) != "" {
		ws = bus.NewWebSocket(logger.Sublogger("websocket"))
		pubs = append(pubs, ws)
	}
	if endpoint := c.String(flagZMQEndpoint); endpoint != "" {
		z, err := bus.NewZMQ(endpoint)
		if err != nil {
			return nil, nil, multierr.Combine(err, bus.Multi(pubs...).Close())
		}
		logger.Infow("publishing on zmq", "endpoint", endpoint)
		pubs = append(pubs, z)
	}
	if len(pubs) == 0 {
		return nil, nil, errors.Errorf("nothing to publish to, set --%s or --%s", flagWSAddr, flagZMQEndpoint)
	}
	return bus.Multi(pubs...), ws, nil
}

// runNode publishes until ctx is done or the device fails.
func runNode(
	ctx context.Context,
	dev k4a.Device,
	pub bus.Publisher,
	ws *bus.WebSocket,
	params node.Params,
	paramsPath, wsAddr string,
	logger logging.Logger,
) (err error) {
	n, err := node.New(ctx, dev, pub, params, logger.Sublogger("node"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, n.Close(context.Background()))
	}()

	workers := utils.NewBackgroundStoppableWorkers()
	defer workers.Stop()
	if ws != nil {
		workers.Add(func(ctx context.Context) {
			logger.Infow("serving websocket subscribers", "addr", wsAddr)
			if err := bus.Serve(ctx, wsAddr, ws, func() any { return n.Status() }); err != nil {
				logger.Errorw("http server stopped", "error", err)
			}
		})
	}
	if paramsPath != "" {
		watcher, watchErr := newParamsWatcher(paramsPath, n.Reconfigure, logger.Sublogger("params"))
		if watchErr != nil {
			return watchErr
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
		workers.Add(watcher.Run)
	}

	select {
	case <-ctx.Done():
		return nil
	case <-n.Failed():
		return errors.New(n.Status().Err)
	}
}
