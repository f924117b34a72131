package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/pulsefit/checkin-sync/pkg/broker"
	"github.com/pulsefit/checkin-sync/schema"
)

// Service implements the check-in and check-out operations on top of a
// session repository, publishing a broker event for every state change.
type Service struct {
	repo   Repository
	broker broker.MessageBroker
	now    func() time.Time
}

func NewService(repo Repository, b broker.MessageBroker) *Service {
	return &Service{
		repo:   repo,
		broker: b,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn opens a session for the member. If the member already has an open
// session the existing session is kept and its check-in timestamp refreshed,
// so a repeated check-in never produces overlapping sessions.
func (s *Service) CheckIn(ctx context.Context, memberID string, lat, lon *float64) (*schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "CheckIn")
	defer span.End()

	now := s.now()

	rec, err := s.repo.FindOpen(ctx, memberID)
	switch {
	case err == nil:
		if err := s.repo.RefreshCheckIn(ctx, rec.ID, now); err != nil {
			span.RecordError(err)
			return nil, err
		}
		rec.CheckIn = now
	case err == ErrNotFound:
		rec = &schema.SessionRecord{
			ID:        uuid.NewString(),
			MemberID:  memberID,
			CheckIn:   now,
			Latitude:  lat,
			Longitude: lon,
		}
		if err := s.repo.Insert(ctx, rec); err != nil {
			span.RecordError(err)
			return nil, err
		}
	default:
		span.RecordError(err)
		return nil, err
	}

	s.publish(ctx, schema.EventCheckedIn, rec)
	return rec, nil
}

// CheckOut closes the member's most recent open session. Returns ErrNotFound
// when the member has no open session.
func (s *Service) CheckOut(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "CheckOut")
	defer span.End()

	rec, err := s.repo.FindOpen(ctx, memberID)
	if err != nil {
		if err != ErrNotFound {
			span.RecordError(err)
		}
		return nil, err
	}

	now := s.now()
	if err := s.repo.SetCheckOut(ctx, rec.ID, now, false); err != nil {
		span.RecordError(err)
		return nil, err
	}
	rec.CheckOut = &now

	s.publish(ctx, schema.EventCheckedOut, rec)
	return rec, nil
}

// publish is best effort: a broker outage must not fail the member's
// check-in or check-out.
func (s *Service) publish(ctx context.Context, kind string, rec *schema.SessionRecord) {
	if err := s.broker.Publish(ctx, schema.NewSessionEvent(kind, rec)); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"kind":      kind,
			"member_id": rec.MemberID,
		}).Warn("failed to publish session event")
	}
}
