package session

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsefit/checkin-sync/schema"
)

// ErrNotFound is returned when a lookup matches no session.
var ErrNotFound = errors.New("session not found")

// Repository defines the database operations for member sessions.
type Repository interface {
	// FindOpen returns the member's most recent open session (check_out is
	// null, ordered by check_in descending), or ErrNotFound.
	FindOpen(ctx context.Context, memberID string) (*schema.SessionRecord, error)
	// Insert stores a new session row.
	Insert(ctx context.Context, rec *schema.SessionRecord) error
	// RefreshCheckIn moves the check-in timestamp of an open session.
	RefreshCheckIn(ctx context.Context, sessionID string, t time.Time) error
	// SetCheckOut closes a session, optionally flagging it as auto-closed.
	SetCheckOut(ctx context.Context, sessionID string, t time.Time, autoClosed bool) error
	// FindOverdue returns open sessions whose check-in is older than cutoff.
	FindOverdue(ctx context.Context, cutoff time.Time) ([]schema.SessionRecord, error)
}

func addDBStatsToSpan(span trace.Span, system, statement string, rows int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("rowsCount", rows),
		attribute.String("db.system", system),
		attribute.String("db.statement", statement),
		attribute.Float64("db.execution_time_ms", float64(duration.Milliseconds())),
	)
}
