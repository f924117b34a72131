package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsefit/checkin-sync/pkg/client"
	"github.com/pulsefit/checkin-sync/pkg/connectivity"
	"github.com/pulsefit/checkin-sync/schema"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity. The
// queue is left unchanged.
var ErrQueueFull = errors.New("offline queue is full")

// Options bound the queue and its retry behavior.
type Options struct {
	MaxQueueSize int
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = 25
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 30 * time.Second
	}
	return o
}

// QueueStatus is a read-only snapshot for UI display.
type QueueStatus struct {
	Total        int  `json:"total"`
	Pending      int  `json:"pending"`
	Failed       int  `json:"failed"`
	IsProcessing bool `json:"is_processing"`
	IsOnline     bool `json:"is_online"`
}

// Controller owns the offline queue: it is the only component that mutates
// queue items or the persisted blob. Enqueued events are synced immediately
// when online and drained in FIFO order after reconnect, with per-item retry
// bookkeeping. Drains are edge-triggered; there is no polling timer.
type Controller struct {
	memberID string
	store    Store
	remote   client.RemoteClient
	monitor  connectivity.Monitor
	opts     Options
	tracer   trace.Tracer

	mu         sync.Mutex
	items      []*schema.QueueItem
	processing bool

	// sleep waits out the retry backoff; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewController restores the persisted queue and wires the connectivity
// monitor so that an offline-to-online transition kicks a drain.
func NewController(memberID string, store Store, remote client.RemoteClient, monitor connectivity.Monitor, opts Options) *Controller {
	c := &Controller{
		memberID: memberID,
		store:    store,
		remote:   remote,
		monitor:  monitor,
		opts:     opts.withDefaults(),
		tracer:   otel.Tracer("checkin-sync"),
		sleep:    sleepCtx,
	}

	items, err := store.Load(context.Background())
	if err != nil {
		logrus.WithError(err).Warn("failed to load persisted queue, starting empty")
	}
	for _, item := range items {
		// An item left SYNCING by a crash never got an acknowledged result.
		if item.Status == schema.StatusSyncing {
			item.Status = schema.StatusPending
		}
	}
	c.items = items

	monitor.Subscribe(func(online bool) {
		if online {
			go c.ProcessQueue(context.Background())
		}
	})

	return c
}

// EnqueueCheckIn queues a CHECK_IN event observed at the given position.
func (c *Controller) EnqueueCheckIn(ctx context.Context, lat, lon float64) (*schema.QueueItem, error) {
	return c.Enqueue(ctx, schema.NewCheckIn(c.memberID, lat, lon))
}

// EnqueueCheckOut queues a CHECK_OUT event.
func (c *Controller) EnqueueCheckOut(ctx context.Context) (*schema.QueueItem, error) {
	return c.Enqueue(ctx, schema.NewCheckOut(c.memberID))
}

// Enqueue appends the item, persists the queue and, when online, drains
// immediately. Fails with ErrQueueFull at capacity without mutating the
// queue.
func (c *Controller) Enqueue(ctx context.Context, item *schema.QueueItem) (*schema.QueueItem, error) {
	c.mu.Lock()
	if len(c.items) >= c.opts.MaxQueueSize {
		c.mu.Unlock()
		return nil, ErrQueueFull
	}
	c.items = append(c.items, item)
	c.persistLocked(ctx)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"id":   item.ID,
		"type": item.Type,
	}).Info("queued check-in event")

	if c.monitor.IsOnline() {
		c.ProcessQueue(ctx)
	}
	return item, nil
}

// ProcessQueue drains pending and retryable items in insertion order, one in
// flight at a time. A call while offline or while another drain is running
// is a no-op.
func (c *Controller) ProcessQueue(ctx context.Context) {
	c.mu.Lock()
	if c.processing || !c.monitor.IsOnline() {
		c.mu.Unlock()
		return
	}
	c.processing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil || !c.monitor.IsOnline() {
			return
		}

		item := c.nextActionable()
		if item == nil {
			return
		}

		c.setStatus(ctx, item, schema.StatusSyncing)
		err := c.send(ctx, item)
		if err == nil {
			c.setStatus(ctx, item, schema.StatusCompleted)
			continue
		}

		c.mu.Lock()
		item.LastError = err.Error()
		if client.Retryable(err) {
			item.RetryCount++
		} else {
			// Domain errors (e.g. check-out with no open session) will not
			// change outcome on retry: consume the whole retry budget.
			item.RetryCount = c.opts.MaxRetries + 1
		}
		item.Status = schema.StatusFailed
		terminal := item.Terminal(c.opts.MaxRetries)
		retries := item.RetryCount
		c.persistLocked(ctx)
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"id":       item.ID,
			"type":     item.Type,
			"retries":  retries,
			"terminal": terminal,
		}).WithError(err).Warn("failed to sync check-in event")

		if !terminal {
			c.sleep(ctx, c.backoff(retries))
		}
	}
}

// Status returns a snapshot of the queue for UI display.
func (c *Controller) Status() QueueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := QueueStatus{
		Total:        len(c.items),
		IsProcessing: c.processing,
		IsOnline:     c.monitor.IsOnline(),
	}
	for _, item := range c.items {
		switch {
		case item.Status == schema.StatusCompleted:
		case item.Terminal(c.opts.MaxRetries):
			st.Failed++
		default:
			st.Pending++
		}
	}
	return st
}

// ClearCompleted prunes COMPLETED items from the queue and persists. Failed
// and pending items are untouched.
func (c *Controller) ClearCompleted(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, item := range c.items {
		if item.Status != schema.StatusCompleted {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.persistLocked(ctx)
}

// Items returns a copy of the queue, oldest first.
func (c *Controller) Items() []*schema.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*schema.QueueItem, len(c.items))
	copy(out, c.items)
	return out
}

// nextActionable returns the oldest non-terminal item. Because items are
// scanned in insertion order and a non-terminal item is always returned
// before anything behind it, a CHECK_OUT can never overtake the CHECK_IN
// queued before it for the same member.
func (c *Controller) nextActionable() *schema.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if !item.Terminal(c.opts.MaxRetries) {
			return item
		}
	}
	return nil
}

func (c *Controller) send(ctx context.Context, item *schema.QueueItem) error {
	ctx, span := c.tracer.Start(ctx, "SyncQueueItem", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("item.type", string(item.Type)),
		attribute.Int("item.retry_count", item.RetryCount),
	))
	defer span.End()

	var err error
	switch item.Type {
	case schema.TypeCheckOut:
		_, err = c.remote.CheckOut(ctx, item.MemberID)
	default:
		var lat, lon float64
		if item.Location != nil {
			lat, lon = item.Location.Latitude, item.Location.Longitude
		}
		_, err = c.remote.CheckIn(ctx, item.MemberID, lat, lon)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Controller) setStatus(ctx context.Context, item *schema.QueueItem, status schema.ItemStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item.Status = status
	c.persistLocked(ctx)
}

// persistLocked mirrors the in-memory queue to the store. Storage failures
// are logged and swallowed: the in-memory queue stays authoritative for the
// running process.
func (c *Controller) persistLocked(ctx context.Context) {
	if err := c.store.Save(ctx, c.items); err != nil {
		logrus.WithError(err).Warn("failed to persist offline queue")
	}
}

func (c *Controller) backoff(retryCount int) time.Duration {
	d := c.opts.BackoffBase << uint(retryCount-1)
	if d > c.opts.BackoffCap || d <= 0 {
		return c.opts.BackoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
