package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsefit/checkin-sync/pkg/geofence"
	"github.com/pulsefit/checkin-sync/schema"
)

var testZone = geofence.Zone{
	Center: schema.Location{Latitude: 59.3293, Longitude: 18.0686},
	Radius: 150,
}

var (
	insidePoint  = schema.Location{Latitude: 59.3294, Longitude: 18.0687} // ~13 m
	outsidePoint = schema.Location{Latitude: 59.331, Longitude: 18.07}    // ~190 m
)

type hookRecorder struct {
	checkIns     atomic.Int32
	checkOuts    atomic.Int32
	checkOutErr  error
	sessionStart atomic.Pointer[time.Time]
}

func (r *hookRecorder) hooks() Hooks {
	return Hooks{
		CheckIn: func(context.Context, float64, float64) error {
			r.checkIns.Add(1)
			return nil
		},
		CheckOut: func(context.Context) error {
			if r.checkOutErr != nil {
				return r.checkOutErr
			}
			r.checkOuts.Add(1)
			return nil
		},
		OpenSessionStart: func(context.Context) (*time.Time, error) {
			return r.sessionStart.Load(), nil
		},
	}
}

func newTestMonitor(rec *hookRecorder) *GeofenceMonitor {
	return NewGeofenceMonitor(NewChannelSource(1), rec.hooks(), Options{Zone: testZone, ExitThreshold: 3})
}

func TestEnterTriggersCheckIn(t *testing.T) {
	rec := &hookRecorder{}
	m := newTestMonitor(rec)

	m.handleUpdate(context.Background(), Update{Location: insidePoint})
	assert.Equal(t, int32(1), rec.checkIns.Load())

	// staying inside does not re-check-in
	m.handleUpdate(context.Background(), Update{Location: insidePoint})
	assert.Equal(t, int32(1), rec.checkIns.Load())
}

func TestExitDebounce(t *testing.T) {
	rec := &hookRecorder{}
	m := newTestMonitor(rec)

	m.handleUpdate(context.Background(), Update{Location: insidePoint})

	// two exits are jitter, not a departure
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	assert.Equal(t, int32(0), rec.checkOuts.Load())

	// the third consecutive exit is the real thing
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	assert.Equal(t, int32(1), rec.checkOuts.Load())
}

func TestExitCounterResetsOnReentry(t *testing.T) {
	rec := &hookRecorder{}
	m := newTestMonitor(rec)

	m.handleUpdate(context.Background(), Update{Location: insidePoint})
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	m.handleUpdate(context.Background(), Update{Location: insidePoint}) // resets the counter
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	m.handleUpdate(context.Background(), Update{Location: outsidePoint})

	assert.Equal(t, int32(0), rec.checkOuts.Load())
	assert.Equal(t, int32(1), rec.checkIns.Load())
}

func TestExitWithoutPriorEntryIsIgnored(t *testing.T) {
	rec := &hookRecorder{}
	m := newTestMonitor(rec)

	for i := 0; i < 5; i++ {
		m.handleUpdate(context.Background(), Update{Location: outsidePoint})
	}
	assert.Equal(t, int32(0), rec.checkOuts.Load())
}

func TestWatchdogForcesCheckOutPastCeiling(t *testing.T) {
	rec := &hookRecorder{}
	m := NewGeofenceMonitor(NewChannelSource(1), rec.hooks(), Options{Zone: testZone, MaxSession: time.Hour})

	start := time.Now().Add(-2 * time.Hour)
	rec.sessionStart.Store(&start)

	m.enforceSessionCeiling(context.Background())
	assert.Equal(t, int32(1), rec.checkOuts.Load())
}

func TestWatchdogLeavesYoungSessionAlone(t *testing.T) {
	rec := &hookRecorder{}
	m := NewGeofenceMonitor(NewChannelSource(1), rec.hooks(), Options{Zone: testZone, MaxSession: time.Hour})

	start := time.Now().Add(-10 * time.Minute)
	rec.sessionStart.Store(&start)

	m.enforceSessionCeiling(context.Background())
	assert.Equal(t, int32(0), rec.checkOuts.Load())
}

func TestWatchdogNoOpenSession(t *testing.T) {
	rec := &hookRecorder{}
	m := NewGeofenceMonitor(NewChannelSource(1), rec.hooks(), Options{Zone: testZone, MaxSession: time.Hour})

	m.enforceSessionCeiling(context.Background())
	assert.Equal(t, int32(0), rec.checkOuts.Load())
}

func TestWatchdogSurvivesCheckOutFailure(t *testing.T) {
	rec := &hookRecorder{checkOutErr: errors.New("backend down")}
	m := NewGeofenceMonitor(NewChannelSource(1), rec.hooks(), Options{Zone: testZone, MaxSession: time.Hour})

	start := time.Now().Add(-2 * time.Hour)
	rec.sessionStart.Store(&start)

	m.enforceSessionCeiling(context.Background()) // must not panic or wedge
	assert.Equal(t, int32(0), rec.checkOuts.Load())

	rec.checkOutErr = nil
	m.enforceSessionCeiling(context.Background())
	assert.Equal(t, int32(1), rec.checkOuts.Load())
}

func TestMonitorConsumesSourceUpdates(t *testing.T) {
	rec := &hookRecorder{}
	source := NewChannelSource(8)
	m := NewGeofenceMonitor(source, rec.hooks(), Options{Zone: testZone, ExitThreshold: 3})

	m.Start(context.Background())
	defer m.Stop()

	source.Publish(insidePoint)
	assert.Eventually(t, func() bool { return rec.checkIns.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	source.Publish(outsidePoint)
	source.Publish(outsidePoint)
	source.Publish(outsidePoint)
	assert.Eventually(t, func() bool { return rec.checkOuts.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartIsIdempotentRestart(t *testing.T) {
	rec := &hookRecorder{}
	source := NewChannelSource(8)
	m := NewGeofenceMonitor(source, rec.hooks(), Options{Zone: testZone})

	m.Start(context.Background())
	m.Start(context.Background()) // stop-then-start, no duplicate loops
	defer m.Stop()

	source.Publish(insidePoint)
	assert.Eventually(t, func() bool { return rec.checkIns.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// a second loop would have double-consumed or double-checked-in
	assert.Equal(t, int32(1), rec.checkIns.Load())
}

func TestStopWithoutStart(t *testing.T) {
	rec := &hookRecorder{}
	m := newTestMonitor(rec)
	m.Stop() // no-op
}
