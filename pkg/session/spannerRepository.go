package session

import (
	"context"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"

	"github.com/pulsefit/checkin-sync/schema"
)

type SpannerRepository struct {
	client *spanner.Client
}

func NewSpannerRepository(client *spanner.Client) *SpannerRepository {
	return &SpannerRepository{client: client}
}

func (s *SpannerRepository) FindOpen(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, member_id, check_in, check_out, latitude, longitude, auto_closed FROM sessions
              WHERE member_id = @memberID AND check_out IS NULL
              ORDER BY check_in DESC LIMIT 1`,
		Params: map[string]interface{}{
			"memberID": memberID,
		},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return spannerRowToSession(row)
}

func (s *SpannerRepository) Insert(ctx context.Context, rec *schema.SessionRecord) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `INSERT INTO sessions (id, member_id, check_in, check_out, latitude, longitude, auto_closed)
                  VALUES (@id, @memberID, @checkIn, @checkOut, @latitude, @longitude, @autoClosed)`,
			Params: map[string]interface{}{
				"id":         rec.ID,
				"memberID":   rec.MemberID,
				"checkIn":    rec.CheckIn,
				"checkOut":   rec.CheckOut,
				"latitude":   rec.Latitude,
				"longitude":  rec.Longitude,
				"autoClosed": rec.AutoClosed,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) RefreshCheckIn(ctx context.Context, sessionID string, t time.Time) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE sessions SET check_in = @checkIn WHERE id = @id`,
			Params: map[string]interface{}{
				"checkIn": t,
				"id":      sessionID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) SetCheckOut(ctx context.Context, sessionID string, t time.Time, autoClosed bool) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE sessions SET check_out = @checkOut, auto_closed = @autoClosed WHERE id = @id`,
			Params: map[string]interface{}{
				"checkOut":   t,
				"autoClosed": autoClosed,
				"id":         sessionID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]schema.SessionRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, member_id, check_in, check_out, latitude, longitude, auto_closed FROM sessions
              WHERE check_out IS NULL AND check_in < @cutoff`,
		Params: map[string]interface{}{
			"cutoff": cutoff,
		},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var sessions []schema.SessionRecord
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := spannerRowToSession(row)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *rec)
	}
	return sessions, nil
}

func spannerRowToSession(row *spanner.Row) (*schema.SessionRecord, error) {
	var rec schema.SessionRecord
	var checkOut spanner.NullTime
	var lat, lon spanner.NullFloat64
	if err := row.Columns(
		&rec.ID,
		&rec.MemberID,
		&rec.CheckIn,
		&checkOut,
		&lat,
		&lon,
		&rec.AutoClosed); err != nil {
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
