package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsefit/checkin-sync/pkg/client"
	"github.com/pulsefit/checkin-sync/pkg/config"
	"github.com/pulsefit/checkin-sync/pkg/connectivity"
	"github.com/pulsefit/checkin-sync/pkg/geofence"
	"github.com/pulsefit/checkin-sync/pkg/monitor"
	"github.com/pulsefit/checkin-sync/pkg/queue"
	"github.com/pulsefit/checkin-sync/pkg/telemetry"
	"github.com/pulsefit/checkin-sync/schema"
)

// sessionTracker remembers when the agent last opened a session so the
// duration watchdog works without a round-trip to the server.
type sessionTracker struct {
	mu    sync.Mutex
	start *time.Time
}

func (t *sessionTracker) opened(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = &at
}

func (t *sessionTracker) closed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = nil
}

func (t *sessionTracker) openSessionStart(ctx context.Context) (*time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration from file or environment
	cfg, err := config.Load("./cmd/checkin-agent")
	if err != nil {
		logrus.Fatal("Error loading configuration: ", err)
	}
	if cfg.Remote.MemberID == "" {
		logrus.Fatal("remote.member_id must be set (CHECKIN_REMOTE_MEMBER_ID)")
	}

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		logrus.Fatal("Failed to initialize telemetry: ", err)
	}
	defer shutdownTelemetry()

	store, err := queue.NewFileStore(cfg.Queue.StorageDir)
	if err != nil {
		logrus.Fatal("Failed to open queue storage: ", err)
	}

	conn := connectivity.NewProbeMonitor(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeInterval)
	conn.Start(ctx)
	defer conn.Stop()

	remote := client.NewHTTPClient(cfg.Remote.BaseURL)

	ctrl := queue.NewController(cfg.Remote.MemberID, store, remote, conn, queue.Options{
		MaxQueueSize: cfg.Queue.MaxSize,
		MaxRetries:   cfg.Queue.MaxRetries,
		BackoffBase:  cfg.Queue.BackoffBase,
		BackoffCap:   cfg.Queue.BackoffCap,
	})

	tracker := &sessionTracker{}
	hooks := monitor.Hooks{
		CheckIn: func(ctx context.Context, lat, lon float64) error {
			if _, err := ctrl.EnqueueCheckIn(ctx, lat, lon); err != nil {
				return err
			}
			tracker.opened(time.Now().UTC())
			return nil
		},
		CheckOut: func(ctx context.Context) error {
			if _, err := ctrl.EnqueueCheckOut(ctx); err != nil {
				return err
			}
			tracker.closed()
			return nil
		},
		OpenSessionStart: tracker.openSessionStart,
	}

	source := monitor.NewChannelSource(16)
	gm := monitor.NewGeofenceMonitor(source, hooks, monitor.Options{
		Zone: geofence.Zone{
			Center: schema.Location{
				Latitude:  cfg.Geofence.CenterLatitude,
				Longitude: cfg.Geofence.CenterLongitude,
			},
			Radius: cfg.Geofence.RadiusMeters,
		},
		ExitThreshold:    cfg.Geofence.ExitThreshold,
		WatchdogInterval: cfg.Monitor.WatchdogInterval,
		MaxSession:       cfg.Geofence.MaxSession(),
	})
	gm.Start(ctx)
	defer gm.Stop()

	// Location fixes arrive as JSON lines on stdin, one reading per line:
	//   {"latitude": 59.3293, "longitude": 18.0686}
	go readLocations(ctx, source)

	logrus.WithField("member_id", cfg.Remote.MemberID).Info("check-in agent running")
	<-ctx.Done()
	logrus.Info("shutting down")
}

func readLocations(ctx context.Context, source *monitor.ChannelSource) {
	defer source.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var loc schema.Location
		if err := json.Unmarshal(line, &loc); err != nil {
			logrus.WithError(err).Warn("skipping malformed location line")
			continue
		}
		source.Publish(loc)
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Error("location input closed with error")
	}
}
