package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/pulsefit/checkin-sync/pkg/session"
	"github.com/pulsefit/checkin-sync/schema"
)

type fakeRepo struct {
	overdue    []schema.SessionRecord
	overdueErr error
	cutoffs    []time.Time

	closed    map[string]time.Time
	closedErr map[string]error
}

func newFakeRepo(overdue ...schema.SessionRecord) *fakeRepo {
	return &fakeRepo{
		overdue:   overdue,
		closed:    make(map[string]time.Time),
		closedErr: make(map[string]error),
	}
}

func (f *fakeRepo) FindOpen(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	return nil, session.ErrNotFound
}

func (f *fakeRepo) Insert(ctx context.Context, rec *schema.SessionRecord) error { return nil }

func (f *fakeRepo) RefreshCheckIn(ctx context.Context, sessionID string, t time.Time) error {
	return nil
}

func (f *fakeRepo) SetCheckOut(ctx context.Context, sessionID string, t time.Time, autoClosed bool) error {
	if err := f.closedErr[sessionID]; err != nil {
		return err
	}
	if !autoClosed {
		return errors.New("sweeper must flag sessions as auto-closed")
	}
	f.closed[sessionID] = t
	return nil
}

func (f *fakeRepo) FindOverdue(ctx context.Context, cutoff time.Time) ([]schema.SessionRecord, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.overdueErr != nil {
		return nil, f.overdueErr
	}
	return f.overdue, nil
}

type captureBroker struct {
	events []*schema.SessionEvent
}

func (c *captureBroker) Publish(ctx context.Context, event *schema.SessionEvent) error {
	c.events = append(c.events, event)
	return nil
}

func (c *captureBroker) Close() error { return nil }

func newTestSweeper(repo session.Repository, b *captureBroker, maxSession time.Duration, now time.Time) *Sweeper {
	s := &Sweeper{
		repo:       repo,
		broker:     b,
		tracer:     otel.Tracer("checkin-sync"),
		interval:   time.Hour,
		maxSession: maxSession,
		now:        func() time.Time { return now },
	}
	return s
}

func TestSweepClosesAtCeiling(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	checkIn := now.Add(-14 * time.Hour)
	repo := newFakeRepo(schema.SessionRecord{ID: "s1", MemberID: "m1", CheckIn: checkIn})
	b := &captureBroker{}
	s := newTestSweeper(repo, b, 12*time.Hour, now)

	s.Sweep(context.Background())

	// Closed at check-in + ceiling, not at sweep time.
	require.Contains(t, repo.closed, "s1")
	assert.Equal(t, checkIn.Add(12*time.Hour), repo.closed["s1"])

	require.Len(t, repo.cutoffs, 1)
	assert.Equal(t, now.Add(-12*time.Hour), repo.cutoffs[0])

	require.Len(t, b.events, 1)
	assert.Equal(t, schema.EventAutoCheckedOut, b.events[0].Kind)
	assert.Equal(t, "m1", b.events[0].MemberID)
}

func TestSweepNothingOverdue(t *testing.T) {
	repo := newFakeRepo()
	b := &captureBroker{}
	s := newTestSweeper(repo, b, 12*time.Hour, time.Now())

	s.Sweep(context.Background())

	assert.Empty(t, repo.closed)
	assert.Empty(t, b.events)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		schema.SessionRecord{ID: "s1", MemberID: "m1", CheckIn: now.Add(-20 * time.Hour)},
		schema.SessionRecord{ID: "s2", MemberID: "m2", CheckIn: now.Add(-15 * time.Hour)},
	)
	repo.closedErr["s1"] = errors.New("write conflict")
	b := &captureBroker{}
	s := newTestSweeper(repo, b, 12*time.Hour, now)

	s.Sweep(context.Background())

	// s1 failed but s2 still got closed and announced.
	assert.NotContains(t, repo.closed, "s1")
	assert.Contains(t, repo.closed, "s2")
	require.Len(t, b.events, 1)
	assert.Equal(t, "m2", b.events[0].MemberID)
}

func TestSweepQueryFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.overdueErr = errors.New("db down")
	b := &captureBroker{}
	s := newTestSweeper(repo, b, 12*time.Hour, time.Now())

	s.Sweep(context.Background())

	assert.Empty(t, repo.closed)
	assert.Empty(t, b.events)
}

func TestStartStop(t *testing.T) {
	repo := newFakeRepo()
	b := &captureBroker{}
	s := newTestSweeper(repo, b, 12*time.Hour, time.Now())

	s.Start(context.Background())
	s.Stop()

	// Start runs an immediate sweep before the first tick.
	assert.GreaterOrEqual(t, len(repo.cutoffs), 1)

	// Stop is idempotent.
	s.Stop()
}
