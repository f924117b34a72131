package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is a row in the sessions table: one visit by one member.
// CheckOut is nil while the session is open. AutoClosed marks sessions that
// were closed by the sweeper rather than by the member.
type SessionRecord struct {
	ID         string     `json:"id" bson:"_id"`
	MemberID   string     `json:"member_id" bson:"member_id"`
	CheckIn    time.Time  `json:"check_in" bson:"check_in"`
	CheckOut   *time.Time `json:"check_out,omitempty" bson:"check_out,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	AutoClosed bool       `json:"auto_closed" bson:"auto_closed"`
}

// Open reports whether the session has no check-out yet.
func (s *SessionRecord) Open() bool {
	return s.CheckOut == nil
}

// Session event kinds published to the broker.
const (
	EventCheckedIn      = "member.checked_in"
	EventCheckedOut     = "member.checked_out"
	EventAutoCheckedOut = "member.auto_checked_out"
)

// SessionEvent is the message published to the broker whenever a session
// changes state. Headers carry the propagated trace context.
type SessionEvent struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	MemberID  string            `json:"member_id"`
	Payload   []byte            `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
	Headers   map[string]string `json:"headers"`
}

// NewSessionEvent wraps a session record into a broker event of the given kind.
func NewSessionEvent(kind string, rec *SessionRecord) *SessionEvent {
	payload, _ := json.Marshal(rec)
	return &SessionEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		MemberID:  rec.MemberID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		Headers:   map[string]string{},
	}
}
