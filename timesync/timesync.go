// Package timesync maps device timestamps onto the host's wall clock.
//
// The device stamps every image with its own clock. The host additionally records, on the
// monotonic clock, when the data arrived over USB. The difference between the two, shifted onto
// the realtime clock, is a noisy estimate of the device to host offset; the Synchronizer smooths
// it with a low-pass filter and snaps to it when the two disagree by more than a threshold.
package timesync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/depthcam/logging"
)

const (
	// DefaultAlpha is the weight of a new measurement in the low-pass filter.
	DefaultAlpha = 0.10
	// DefaultSnapThreshold is how far a measurement may be from the filtered offset before the
	// filter is reset to it.
	DefaultSnapThreshold = 10 * time.Millisecond
)

// An Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithAlpha sets the filter weight, clamped to (0, 1].
func WithAlpha(alpha float64) Option {
	return func(s *Synchronizer) {
		if alpha > 0 && alpha <= 1 {
			s.alpha = alpha
		}
	}
}

// WithSnapThreshold sets the snap threshold.
func WithSnapThreshold(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.snap = d
		}
	}
}

// WithMonotonic replaces the host monotonic clock.
func WithMonotonic(monotonic func() time.Duration) Option {
	return func(s *Synchronizer) {
		s.monotonic = monotonic
	}
}

// WithLogger logs offset snaps.
func WithLogger(logger logging.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// Synchronizer tracks the device to host offset. One goroutine updates it; any number may read.
type Synchronizer struct {
	clock     clock.Clock
	monotonic func() time.Duration
	alpha     float64
	snap      time.Duration
	logger    logging.Logger

	mu         sync.Mutex
	offset     time.Duration
	hasOffset  bool
	lastDevice time.Duration
	hasLast    bool

	current     atomic.Duration
	initialized atomic.Bool
	snaps       atomic.Uint64
}

// New returns a Synchronizer with no offset yet.
func New(clk clock.Clock, opts ...Option) *Synchronizer {
	if clk == nil {
		clk = clock.New()
	}
	s := &Synchronizer{
		clock:     clk,
		monotonic: Monotonic,
		alpha:     DefaultAlpha,
		snap:      DefaultSnapThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewBlankLogger("timesync")
	}
	return s
}

// InitializeOffset sets the offset from the current wall clock, as if device were captured now.
// It does nothing once an offset exists.
func (s *Synchronizer) InitializeOffset(device time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializeLocked(device)
}

func (s *Synchronizer) initializeLocked(device time.Duration) {
	if s.hasOffset {
		return
	}
	s.setLocked(time.Duration(s.clock.Now().UnixNano()) - device)
	s.lastDevice = device
	s.hasLast = true
}

// UpdateOffset folds in a measurement: device is the device timestamp of an image, system the
// host monotonic time it arrived at. A zero system timestamp leaves the offset unchanged.
func (s *Synchronizer) UpdateOffset(device, system time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked(device, system)
}

func (s *Synchronizer) updateLocked(device, system time.Duration) {
	if system == 0 {
		return
	}
	realtimeToMonotonic := time.Duration(s.clock.Now().UnixNano()) - s.monotonic()
	candidate := system - device + realtimeToMonotonic

	next := candidate
	if s.hasOffset {
		diff := candidate - s.offset
		if diff > s.snap || diff < -s.snap {
			s.snaps.Inc()
			s.logger.Debugw("timestamp offset snapped", "from", s.offset, "to", candidate, "diff", diff)
		} else {
			next = s.offset + time.Duration(s.alpha*float64(diff))
		}
	}

	// never let a later device timestamp map to an earlier host time
	if s.hasOffset && s.hasLast && next < s.offset {
		elapsed := device - s.lastDevice
		if elapsed < 0 {
			elapsed = 0
		}
		if floor := s.offset - elapsed; next < floor {
			next = floor
		}
	}
	s.setLocked(next)
	s.lastDevice = device
	s.hasLast = true
}

func (s *Synchronizer) setLocked(offset time.Duration) {
	s.offset = offset
	s.hasOffset = true
	s.current.Store(offset)
	s.initialized.Store(true)
}

// Stamp handles one capture: it updates the offset from the arrival time when there is one,
// initializes it from the wall clock otherwise, and returns the host time of device.
func (s *Synchronizer) Stamp(device, system time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if system != 0 {
		s.updateLocked(device, system)
	} else {
		s.initializeLocked(device)
		if device > s.lastDevice {
			s.lastDevice = device
			s.hasLast = true
		}
	}
	return time.Unix(0, int64(s.offset+device))
}

// ToHostTime converts a device timestamp with the current offset. Before any offset is known the
// device timestamp is returned as is.
func (s *Synchronizer) ToHostTime(device time.Duration) time.Time {
	return time.Unix(0, int64(s.current.Load()+device))
}

// ImuToHostTime converts an IMU timestamp in device microseconds.
func (s *Synchronizer) ImuToHostTime(deviceUsec uint64) time.Time {
	return s.ToHostTime(time.Duration(deviceUsec) * time.Microsecond)
}

// Offset returns the current offset and whether one has been established.
func (s *Synchronizer) Offset() (time.Duration, bool) {
	return s.current.Load(), s.initialized.Load()
}

// Snaps returns how many times the filter was reset to a measurement.
func (s *Synchronizer) Snaps() uint64 {
	return s.snaps.Load()
}
