// Package node runs the driver: it starts the device streams, pulls captures in a background
// loop, converts them and publishes the results.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/depthcam/bus"
	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/projection"
	"go.viam.com/depthcam/timesync"
)

// State is the lifecycle state of a Node.
type State string

// Node states.
const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Status is a point in time view of a Node for diagnostics.
type Status struct {
	SessionID string `json:"session_id"`
	Serial    string `json:"serial"`
	State     State  `json:"state"`

	FramesPublished uint64 `json:"frames_published"`
	FramesDropped   uint64 `json:"frames_dropped"`
	MessagesDropped uint64 `json:"messages_dropped"`
	CaptureTimeouts uint64 `json:"capture_timeouts"`
	CaptureErrors   uint64 `json:"capture_errors"`
	ImuSamples      uint64 `json:"imu_samples"`
	Restarts        uint64 `json:"restarts"`

	Offset      time.Duration `json:"offset"`
	OffsetValid bool          `json:"offset_valid"`
	OffsetSnaps uint64        `json:"offset_snaps"`

	Err string `json:"error,omitempty"`
}

// Dropped-message warnings are limited to a burst of dropLogBurst, then one per dropLogInterval;
// the rest go to debug.
const (
	dropLogInterval = time.Second
	dropLogBurst    = 5
)

// An Option configures a Node.
type Option func(*Node)

// WithClock replaces the wall clock used for timestamps.
func WithClock(clk clock.Clock) Option {
	return func(n *Node) {
		n.clock = clk
	}
}

// WithTimesyncOptions passes extra options to the timestamp synchronizer.
func WithTimesyncOptions(opts ...timesync.Option) Option {
	return func(n *Node) {
		n.timesyncOpts = append(n.timesyncOpts, opts...)
	}
}

// Node publishes the data of one device.
type Node struct {
	logger       logging.Logger
	dev          k4a.Device
	pub          bus.Publisher
	clock        clock.Clock
	timesyncOpts []timesync.Option
	sessionID    string

	sync        *timesync.Synchronizer
	reconfigure chan Params
	workers     *utils.StoppableWorkers
	failed      chan struct{}
	closeOnce   sync.Once

	mu        sync.Mutex
	params    Params
	projector *projection.Projector
	state     State
	lastErr   error

	seq             uint32
	dropLog         *rate.Limiter
	framesPublished atomic.Uint64
	framesDropped   atomic.Uint64
	messagesDropped atomic.Uint64
	captureTimeouts atomic.Uint64
	captureErrors   atomic.Uint64
	imuSamples      atomic.Uint64
	restarts        atomic.Uint64
}

// New validates params, reads the device calibration, starts the streams and the publishing
// loop. The caller keeps ownership of dev and closes it after Close.
func New(
	ctx context.Context,
	dev k4a.Device,
	pub bus.Publisher,
	params Params,
	logger logging.Logger,
	opts ...Option,
) (*Node, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid params")
	}
	n := &Node{
		logger:      logger,
		dev:         dev,
		pub:         pub,
		clock:       clock.New(),
		sessionID:   uuid.NewString(),
		reconfigure: make(chan Params, 1),
		failed:      make(chan struct{}),
		dropLog:     rate.NewLimiter(rate.Every(dropLogInterval), dropLogBurst),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.sync = timesync.New(n.clock, append([]timesync.Option{
		timesync.WithAlpha(params.TimesyncAlpha),
		timesync.WithSnapThreshold(params.TimesyncSnapThreshold),
		timesync.WithLogger(logger.Sublogger("timesync")),
	}, n.timesyncOpts...)...)

	projector, err := n.startStreams(ctx, params)
	if err != nil {
		return nil, err
	}
	n.params = params
	n.projector = projector
	n.state = StateRunning
	logger.Infow("streams started",
		"serial", dev.SerialNumber(), "session", n.sessionID, "config", params.DeviceConfiguration())

	n.workers = utils.NewBackgroundStoppableWorkers(n.captureLoop, n.imuLoop)
	return n, nil
}

// startStreams loads the calibration for params and starts the device.
func (n *Node) startStreams(ctx context.Context, params Params) (*projection.Projector, error) {
	cfg := params.DeviceConfiguration()
	cal, err := n.dev.Calibration(ctx, cfg)
	if err != nil {
		return nil, k4a.Unavailable(err, "reading calibration")
	}
	depthOverride, colorOverride, err := params.loadOverrides()
	if err != nil {
		return nil, errors.Wrap(err, "loading calibration files")
	}
	if depthOverride != nil || colorOverride != nil {
		if cal, err = cal.WithOverrides(depthOverride, colorOverride); err != nil {
			return nil, errors.Wrap(err, "applying calibration files")
		}
		n.logger.Infow("calibration overridden from file",
			"depth", params.DepthCalibrationFile, "color", params.ColorCalibrationFile)
	}
	projector, err := projection.New(cal, n.logger.Sublogger("projection"))
	if err != nil {
		return nil, err
	}
	if err := n.dev.Start(ctx, cfg); err != nil {
		if errors.Is(err, k4a.ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, k4a.Unavailable(err, "starting streams")
	}
	return projector, nil
}

// Reconfigure queues a new parameter snapshot. The loop applies it between captures; if another
// snapshot is still pending it is replaced.
func (n *Node) Reconfigure(params Params) error {
	if err := params.Validate(); err != nil {
		return errors.Wrap(err, "invalid params")
	}
	if state := n.State(); state != StateRunning {
		return errors.Errorf("cannot reconfigure a %s node", state)
	}
	for {
		select {
		case n.reconfigure <- params:
			return nil
		default:
		}
		select {
		case <-n.reconfigure:
		default:
		}
	}
}

// applyParams switches to params, restarting the streams when the device configuration or the
// calibration changed.
func (n *Node) applyParams(ctx context.Context, params Params) error {
	current := n.currentParams()
	if !current.needsRestart(params) {
		n.mu.Lock()
		n.params = params
		n.mu.Unlock()
		n.logger.Infow("parameters updated")
		return nil
	}

	n.logger.Infow("restarting streams for new parameters", "config", params.DeviceConfiguration())
	if err := n.dev.Stop(ctx); err != nil {
		n.logger.Warnw("error stopping streams", "error", err)
	}
	projector, err := n.startStreams(ctx, params)
	if err != nil {
		n.logger.Errorw("could not apply new parameters, restoring previous ones", "error", err)
		// the device may have refused the new mode; go back to the one that worked
		if projector, err = n.startStreams(ctx, current); err != nil {
			return err
		}
		params = current
	}
	n.restarts.Inc()
	n.mu.Lock()
	n.params = params
	n.projector = projector
	n.mu.Unlock()
	return nil
}

func (n *Node) currentParams() Params {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params
}

func (n *Node) current() (Params, *projection.Projector) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params, n.projector
}

// fail moves the node to its terminal state.
func (n *Node) fail(err error) {
	n.mu.Lock()
	if n.state != StateRunning {
		n.mu.Unlock()
		return
	}
	n.state = StateFailed
	n.lastErr = err
	n.mu.Unlock()
	n.logger.Errorw("device failed, publishing stopped", "error", err)
	close(n.failed)
}

// logDrop logs a message that could not be built or published.
func (n *Node) logDrop(msg string, keysAndValues ...interface{}) {
	n.messagesDropped.Inc()
	if n.dropLog.Allow() {
		n.logger.Warnw(msg, keysAndValues...)
		return
	}
	n.logger.Debugw(msg, keysAndValues...)
}

func (n *Node) setLastErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastErr = err
}

// Failed is closed when the node stops because of a device failure.
func (n *Node) Failed() <-chan struct{} {
	return n.failed
}

// State returns the lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Params returns the parameters currently in effect.
func (n *Node) Params() Params {
	return n.currentParams()
}

// Status returns a diagnostics snapshot.
func (n *Node) Status() Status {
	offset, valid := n.sync.Offset()
	n.mu.Lock()
	defer n.mu.Unlock()
	s := Status{
		SessionID:       n.sessionID,
		Serial:          n.dev.SerialNumber(),
		State:           n.state,
		FramesPublished: n.framesPublished.Load(),
		FramesDropped:   n.framesDropped.Load(),
		MessagesDropped: n.messagesDropped.Load(),
		CaptureTimeouts: n.captureTimeouts.Load(),
		CaptureErrors:   n.captureErrors.Load(),
		ImuSamples:      n.imuSamples.Load(),
		Restarts:        n.restarts.Load(),
		Offset:          offset,
		OffsetValid:     valid,
		OffsetSnaps:     n.sync.Snaps(),
	}
	if n.lastErr != nil {
		s.Err = n.lastErr.Error()
	}
	return s
}

// Close stops the loops and the streams. It does not close the device.
func (n *Node) Close(ctx context.Context) error {
	var err error
	n.closeOnce.Do(func() {
		n.workers.Stop()
		err = n.dev.Stop(ctx)
		n.mu.Lock()
		if n.state == StateRunning {
			n.state = StateStopped
		}
		n.mu.Unlock()
		n.logger.Infow("node closed", "status", n.Status())
	})
	return err
}
