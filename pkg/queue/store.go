package queue

import (
	"context"

	"github.com/pulsefit/checkin-sync/schema"
)

// StorageKey is the fixed key under which the serialized queue lives.
const StorageKey = "offlineQueue"

// Store persists the whole queue as one serialized blob. Save is invoked
// after every queue mutation (write-through); Load restores the queue at
// controller initialization.
type Store interface {
	Load(ctx context.Context) ([]*schema.QueueItem, error)
	Save(ctx context.Context, items []*schema.QueueItem) error
}
