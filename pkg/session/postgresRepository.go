package session

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/pulsefit/checkin-sync/schema"
)

// PostgresRepository stores sessions in a Postgres table:
//
//	CREATE TABLE sessions (
//	    id          UUID PRIMARY KEY,
//	    member_id   TEXT NOT NULL,
//	    check_in    TIMESTAMPTZ NOT NULL,
//	    check_out   TIMESTAMPTZ,
//	    latitude    DOUBLE PRECISION,
//	    longitude   DOUBLE PRECISION,
//	    auto_closed BOOLEAN NOT NULL DEFAULT FALSE
//	);
type PostgresRepository struct {
	db *sql.DB // using database/sql
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) FindOpen(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "FindOpen")
	defer span.End()

	start := time.Now()
	row := p.db.QueryRowContext(ctx,
		`SELECT id, member_id, check_in, check_out, latitude, longitude, auto_closed FROM sessions
         WHERE member_id=$1 AND check_out IS NULL
         ORDER BY check_in DESC LIMIT 1`, memberID)

	rec, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "postgresql", "FindOpen", 1, time.Since(start))
	return rec, nil
}

func (p *PostgresRepository) Insert(ctx context.Context, rec *schema.SessionRecord) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "Insert")
	defer span.End()

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO sessions (id, member_id, check_in, check_out, latitude, longitude, auto_closed)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.MemberID, rec.CheckIn, rec.CheckOut, rec.Latitude, rec.Longitude, rec.AutoClosed)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *PostgresRepository) RefreshCheckIn(ctx context.Context, sessionID string, t time.Time) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "RefreshCheckIn")
	defer span.End()

	_, err := p.db.ExecContext(ctx,
		`UPDATE sessions SET check_in=$1 WHERE id=$2`, t, sessionID)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *PostgresRepository) SetCheckOut(ctx context.Context, sessionID string, t time.Time, autoClosed bool) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "SetCheckOut")
	defer span.End()

	_, err := p.db.ExecContext(ctx,
		`UPDATE sessions SET check_out=$1, auto_closed=$2 WHERE id=$3`, t, autoClosed, sessionID)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *PostgresRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "FindOverdue")
	defer span.End()

	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, member_id, check_in, check_out, latitude, longitude, auto_closed FROM sessions
         WHERE check_out IS NULL AND check_in < $1`, cutoff)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var sessions []schema.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		sessions = append(sessions, *rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "postgresql", "FindOverdue", len(sessions), time.Since(start))
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*schema.SessionRecord, error) {
	var rec schema.SessionRecord
	var checkOut sql.NullTime
	var lat, lon sql.NullFloat64
	if err := row.Scan(&rec.ID, &rec.MemberID, &rec.CheckIn, &checkOut, &lat, &lon, &rec.AutoClosed); err != nil {
		return nil, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		rec.CheckOut = &t
	}
	if lat.Valid {
		v := lat.Float64
		rec.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		rec.Longitude = &v
	}
	return &rec, nil
}
