package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsefit/checkin-sync/pkg/broker"
	"github.com/pulsefit/checkin-sync/pkg/session"
	"github.com/pulsefit/checkin-sync/schema"
)

// Sweeper closes sessions that have been open longer than the session
// ceiling. An overdue session is closed at check-in plus the ceiling, not at
// the moment the sweep happens to run, and is flagged as auto-closed.
type Sweeper struct {
	repo       session.Repository
	broker     broker.MessageBroker
	tracer     trace.Tracer
	interval   time.Duration
	maxSession time.Duration
	now        func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(repo session.Repository, b broker.MessageBroker, interval, maxSession time.Duration) *Sweeper {
	return &Sweeper{
		repo:       repo,
		broker:     b,
		tracer:     otel.Tracer("checkin-sync"),
		interval:   interval,
		maxSession: maxSession,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a sweep immediately, then on every tick until Stop or ctx
// cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.stopChan == nil {
		return
	}
	close(s.stopChan)
	s.wg.Wait()
	s.stopChan = nil
}

// Sweep closes every overdue session. A failure on one session is logged and
// does not stop the others from being closed.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "SweepOverdueSessions")
	defer span.End()

	cutoff := s.now().Add(-s.maxSession)
	overdue, err := s.repo.FindOverdue(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("failed to query overdue sessions")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("sessions.overdue", len(overdue)))

	for i := range overdue {
		rec := &overdue[i]
		closeAt := rec.CheckIn.Add(s.maxSession)
		if err := s.repo.SetCheckOut(ctx, rec.ID, closeAt, true); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"session_id": rec.ID,
				"member_id":  rec.MemberID,
			}).Error("failed to auto-close session")
			span.RecordError(err)
			continue
		}
		rec.CheckOut = &closeAt
		rec.AutoClosed = true

		logrus.WithFields(logrus.Fields{
			"session_id": rec.ID,
			"member_id":  rec.MemberID,
			"check_in":   rec.CheckIn,
			"check_out":  closeAt,
		}).Info("auto-closed overdue session")

		if err := s.broker.Publish(ctx, schema.NewSessionEvent(schema.EventAutoCheckedOut, rec)); err != nil {
			logrus.WithError(err).WithField("session_id", rec.ID).
				Warn("failed to publish auto-checkout event")
		}
	}
}
