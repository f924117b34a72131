package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsefit/checkin-sync/pkg/geofence"
	"github.com/pulsefit/checkin-sync/schema"
)

// Update is one location reading delivered by the platform.
type Update struct {
	Location schema.Location
	Time     time.Time
}

// LocationSource delivers location updates as immutable messages on a
// channel. The platform callback side writes to it; the monitor is the only
// consumer, so all geofence state stays on one goroutine.
type LocationSource interface {
	Updates() <-chan Update
}

// Hooks are the application callbacks the monitor drives. CheckIn and
// CheckOut go through the offline queue controller's entry points; the
// monitor never touches queue state directly. OpenSessionStart reports the
// start time of the member's current open session (nil when none) for the
// duration watchdog.
type Hooks struct {
	CheckIn          func(ctx context.Context, lat, lon float64) error
	CheckOut         func(ctx context.Context) error
	OpenSessionStart func(ctx context.Context) (*time.Time, error)
}

// Options configure zone transitions and the session-duration watchdog.
type Options struct {
	Zone             geofence.Zone
	ExitThreshold    int           // consecutive outside readings before check-out
	WatchdogInterval time.Duration // how often the session ceiling is checked
	MaxSession       time.Duration // force check-out past this session length
}

func (o Options) withDefaults() Options {
	if o.ExitThreshold <= 0 {
		o.ExitThreshold = 3
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = 5 * time.Minute
	}
	if o.MaxSession <= 0 {
		o.MaxSession = 12 * time.Hour
	}
	return o
}

// GeofenceMonitor turns raw location updates into check-in/check-out calls:
// check-in on zone entry, check-out after ExitThreshold consecutive exit
// readings (debouncing GPS jitter at the boundary), and a watchdog that
// force-closes sessions running past MaxSession regardless of geofence
// state.
type GeofenceMonitor struct {
	source LocationSource
	hooks  Hooks
	opts   Options

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// goroutine-local state, touched only by runLoop
	inside    bool
	exitCount int
}

// NewGeofenceMonitor wires a source and callbacks with the given options.
func NewGeofenceMonitor(source LocationSource, hooks Hooks, opts Options) *GeofenceMonitor {
	return &GeofenceMonitor{
		source: source,
		hooks:  hooks,
		opts:   opts.withDefaults(),
	}
}

// Start begins consuming updates. A running monitor is stopped first so a
// repeated Start never leaves a stale duplicate loop behind.
func (m *GeofenceMonitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	m.stopChan = make(chan struct{})
	m.running = true
	stop := m.stopChan
	m.mu.Unlock()

	m.inside = false
	m.exitCount = 0

	m.wg.Add(1)
	go m.runLoop(ctx, stop)
	logrus.WithFields(logrus.Fields{
		"radius_m":       m.opts.Zone.Radius,
		"exit_threshold": m.opts.ExitThreshold,
	}).Info("geofence monitoring started")
}

// Stop tears down the consume loop and the watchdog timer. An in-flight
// check-in call is left to resolve on its own.
func (m *GeofenceMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *GeofenceMonitor) runLoop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	watchdog := time.NewTicker(m.opts.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case update, ok := <-m.source.Updates():
			if !ok {
				return
			}
			m.handleUpdate(ctx, update)
		case <-watchdog.C:
			m.enforceSessionCeiling(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *GeofenceMonitor) handleUpdate(ctx context.Context, update Update) {
	if m.opts.Zone.Contains(update.Location) {
		m.exitCount = 0
		if m.inside {
			return
		}
		m.inside = true
		if err := m.hooks.CheckIn(ctx, update.Location.Latitude, update.Location.Longitude); err != nil {
			logrus.WithError(err).Warn("geofence check-in failed")
			// not inside yet as far as the session goes; retry on next reading
			m.inside = false
		}
		return
	}

	if !m.inside {
		return
	}
	m.exitCount++
	if m.exitCount < m.opts.ExitThreshold {
		return
	}
	if err := m.hooks.CheckOut(ctx); err != nil {
		logrus.WithError(err).Warn("geofence check-out failed")
		return
	}
	m.inside = false
	m.exitCount = 0
}

// enforceSessionCeiling force-closes a session that has been open longer
// than MaxSession, independent of geofence state. Errors are logged and the
// watchdog keeps its schedule.
func (m *GeofenceMonitor) enforceSessionCeiling(ctx context.Context) {
	start, err := m.hooks.OpenSessionStart(ctx)
	if err != nil {
		logrus.WithError(err).Warn("session watchdog lookup failed")
		return
	}
	if start == nil || time.Since(*start) <= m.opts.MaxSession {
		return
	}

	logrus.WithField("session_start", start).Warn("session exceeded maximum duration, forcing check-out")
	if err := m.hooks.CheckOut(ctx); err != nil {
		logrus.WithError(err).Warn("forced check-out failed")
		return
	}
	m.inside = false
	m.exitCount = 0
}
