package schema

import (
	"time"

	"github.com/google/uuid"
)

// ItemType classifies a queued check-in event.
type ItemType string

const (
	TypeCheckIn  ItemType = "CHECK_IN"
	TypeCheckOut ItemType = "CHECK_OUT"
)

// ItemStatus represents the sync status of a queued item.
type ItemStatus string

const (
	StatusPending   ItemStatus = "PENDING"
	StatusSyncing   ItemStatus = "SYNCING"
	StatusCompleted ItemStatus = "COMPLETED"
	StatusFailed    ItemStatus = "FAILED"
)

// Location is a WGS84 coordinate pair in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// QueueItem represents a check-in or check-out event awaiting sync with the
// backend. The whole queue is persisted as a JSON array under a single
// storage key, so the field names here are the on-disk contract.
type QueueItem struct {
	ID         string            `json:"id"`
	MemberID   string            `json:"member_id"`
	Type       ItemType          `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	Location   *Location         `json:"location,omitempty"`
	Status     ItemStatus        `json:"status"`
	RetryCount int               `json:"retryCount"`
	LastError  string            `json:"lastError,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Terminal reports whether the item has left the automatic retry pool.
// A FAILED item is terminal once its retry budget is spent.
func (q *QueueItem) Terminal(maxRetries int) bool {
	if q.Status == StatusCompleted {
		return true
	}
	return q.Status == StatusFailed && q.RetryCount > maxRetries
}

// NewCheckIn creates a pending CHECK_IN item for the given member and position.
func NewCheckIn(memberID string, lat, lon float64) *QueueItem {
	item := newItem(memberID, TypeCheckIn)
	item.Location = &Location{Latitude: lat, Longitude: lon}
	return item
}

// NewCheckOut creates a pending CHECK_OUT item for the given member.
func NewCheckOut(memberID string) *QueueItem {
	return newItem(memberID, TypeCheckOut)
}

func newItem(memberID string, t ItemType) *QueueItem {
	return &QueueItem{
		ID:         uuid.NewString(),
		MemberID:   memberID,
		Type:       t,
		Timestamp:  time.Now().UTC(),
		Status:     StatusPending,
		RetryCount: 0,
	}
}
